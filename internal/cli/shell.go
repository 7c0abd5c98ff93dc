package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/ocs"
	"github.com/Azelphur/ownCloud-share-tools/internal/permission"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
)

const shellHelp = `commands:
  list                      show the shares of this item
  link on|off               create or remove the public link
  password <pw>|clear       set or remove the link password
  expire DD-MM-YYYY|clear   set or remove the link expiration date
  allow <id> <flag>         grant read, update, create, delete or share
  deny <id> <flag>          revoke a permission
  delete <id>               delete a share
  refresh                   reload shares from the server
  exit                      leave the shell`

var errNoLink = errors.New("no public link, run 'link on' first")

// shellState holds the shares of the item the shell was opened on.
type shellState struct {
	s      *session
	path   string
	shares []*ocs.Share
}

// shell runs the interactive loop over one local file or folder.
func shell(ctx context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	cloud, err := s.cloudPath(args[0])
	if err != nil {
		return err
	}
	st := &shellState{s: s, path: cloud}
	if err := st.refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "sharing %s\n", cloud)
	st.list()

	scanner := bufio.NewScanner(s.stdin)
	for {
		fmt.Fprint(s.out, "ocshare> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}
		if err := st.exec(ctx, args); err != nil {
			fmt.Fprintln(s.out, "error:", describe(err))
		}
	}
}

func (st *shellState) exec(ctx context.Context, args []string) error {
	out := st.s.out
	switch args[0] {
	case "help":
		fmt.Fprintln(out, shellHelp)
	case "list":
		st.list()
	case "refresh":
		if err := st.refresh(ctx); err != nil {
			return err
		}
		st.list()
	case "link":
		if len(args) != 2 {
			return errors.New("usage: link on|off")
		}
		switch args[1] {
		case "on":
			return st.linkOn(ctx)
		case "off":
			return st.linkOff(ctx)
		}
		return errors.New("usage: link on|off")
	case "password":
		if len(args) != 2 {
			return errors.New("usage: password <pw>|clear")
		}
		pw := args[1]
		if pw == "clear" {
			pw = ""
		}
		return st.updateLink(ctx, ocs.UpdateOptions{Password: &pw})
	case "expire":
		if len(args) != 2 {
			return errors.New("usage: expire DD-MM-YYYY|clear")
		}
		var d time.Time
		if args[1] != "clear" {
			var err error
			if d, err = protocol.ParseDate(args[1]); err != nil {
				return err
			}
		}
		return st.updateLink(ctx, ocs.UpdateOptions{Expiration: &d})
	case "allow", "deny":
		cmd, err := parseSetPermission(args)
		if err != nil {
			return err
		}
		return st.apply(ctx, cmd)
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: delete <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		sh, err := st.find(ctx, id)
		if err != nil {
			return err
		}
		if err := sh.Delete(ctx); err != nil {
			return err
		}
		st.forget(sh)
		fmt.Fprintf(out, "deleted %s\n", sh)
	default:
		return fmt.Errorf("unknown command %q, type 'help'", args[0])
	}
	return nil
}

func parseSetPermission(args []string) (permission.SetPermission, error) {
	if len(args) != 3 {
		return permission.SetPermission{}, fmt.Errorf("usage: %s <id> <flag>", args[0])
	}
	id, err := parseID(args[1])
	if err != nil {
		return permission.SetPermission{}, err
	}
	flag, err := permission.ParseFlag(args[2])
	if err != nil {
		return permission.SetPermission{}, err
	}
	return permission.SetPermission{ShareID: id, Flag: flag, Enabled: args[0] == "allow"}, nil
}

func (st *shellState) refresh(ctx context.Context) error {
	shares, err := st.s.client.ListShares(ctx, ocs.ListOptions{Path: st.path})
	if err != nil {
		return err
	}
	st.shares = shares
	return nil
}

func (st *shellState) list() {
	out := st.s.out
	if len(st.shares) == 0 {
		fmt.Fprintln(out, "not shared")
		return
	}
	for _, sh := range st.shares {
		who := sh.ShareWith
		if sh.Type == models.ShareTypePublicLink {
			who = sh.URL()
			if sh.PasswordProtected {
				who += " (password)"
			}
		}
		exp := ""
		if sh.Expiration != nil {
			exp = " expires " + protocol.FormatDate(*sh.Expiration)
		}
		fmt.Fprintf(out, "#%d %-6s %-28s %s%s\n", sh.ID, sh.Type, sh.Permissions, who, exp)
	}
}

// find returns the cached share with id, fetching it when it is not cached.
func (st *shellState) find(ctx context.Context, id int) (*ocs.Share, error) {
	for _, sh := range st.shares {
		if sh.ID == id {
			return sh, nil
		}
	}
	return st.s.client.GetShare(ctx, id)
}

func (st *shellState) forget(gone *ocs.Share) {
	kept := st.shares[:0]
	for _, sh := range st.shares {
		if sh != gone {
			kept = append(kept, sh)
		}
	}
	st.shares = kept
}

func (st *shellState) link() *ocs.Share {
	for _, sh := range st.shares {
		if sh.Type == models.ShareTypePublicLink {
			return sh
		}
	}
	return nil
}

func (st *shellState) linkOn(ctx context.Context) error {
	if sh := st.link(); sh != nil {
		fmt.Fprintln(st.s.out, sh.URL())
		return nil
	}
	sh, err := st.s.client.CreateShare(ctx, ocs.CreateOptions{Path: st.path, ShareType: models.ShareTypePublicLink})
	if err != nil {
		return err
	}
	st.shares = append(st.shares, sh)
	fmt.Fprintln(st.s.out, sh.URL())
	return nil
}

func (st *shellState) linkOff(ctx context.Context) error {
	for sh := st.link(); sh != nil; sh = st.link() {
		if err := sh.Delete(ctx); err != nil {
			return err
		}
		st.forget(sh)
		fmt.Fprintf(st.s.out, "deleted %s\n", sh)
	}
	return nil
}

func (st *shellState) updateLink(ctx context.Context, opts ocs.UpdateOptions) error {
	sh := st.link()
	if sh == nil {
		return errNoLink
	}
	if err := sh.Update(ctx, opts); err != nil {
		return err
	}
	fmt.Fprintf(st.s.out, "updated %s\n", sh)
	return nil
}

func (st *shellState) apply(ctx context.Context, cmd permission.SetPermission) error {
	sh, err := st.find(ctx, cmd.ShareID)
	if err != nil {
		return err
	}
	if err := sh.Apply(ctx, cmd); err != nil {
		return err
	}
	fmt.Fprintf(st.s.out, "%s: now %s\n", cmd, sh.Permissions)
	return nil
}
