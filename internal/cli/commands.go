package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/ocs"
	"github.com/Azelphur/ownCloud-share-tools/internal/protocol"
	"github.com/Azelphur/ownCloud-share-tools/internal/syncfolder"
)

func init() {
	register(command{name: "getshares", usage: "[-path P] [-local] [-reshares] [-subfiles]", summary: "list shares", run: getShares})
	register(command{name: "getshare", usage: "<id>", summary: "show one share", run: getShare})
	register(command{name: "create", usage: "-path P [-share-type T] [-share-with S] [-public-upload] [-share-password X] [-allow-*|-deny-*]", summary: "create a share", run: createShare})
	register(command{name: "update", usage: "<id> [-public-upload=bool] [-share-password X|-clear-password] [-expire DD-MM-YYYY|-clear-expire] [-allow-*|-deny-*]", summary: "change a share", run: updateShare})
	register(command{name: "delete", usage: "<id>", summary: "delete a share", run: deleteShare})
	register(command{name: "resolve", usage: "<local path>", summary: "print the cloud path of a local file", offline: true, run: resolvePath})
	register(command{name: "link", usage: "<local path> [-adopt] [-share-password X]", summary: "print the public link of a local file, creating it if needed", run: linkPath})
	register(command{name: "shell", usage: "<local path>", summary: "manage the shares of a local file interactively", run: shell})
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid share id %q", s)
	}
	return id, nil
}

// singleID parses a command line holding exactly one share id.
func singleID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	return parseID(args[0])
}

func printShareLine(w io.Writer, sh *ocs.Share) {
	url := sh.URL()
	if url == "" {
		url = "-"
	}
	fmt.Fprintf(w, "#%d %s %s\n", sh.ID, url, sh.Path)
}

func printShare(w io.Writer, sh *ocs.Share) {
	row := func(k string, v any) { fmt.Fprintf(w, "%-12s %v\n", k+":", v) }
	row("id", sh.ID)
	row("type", sh.Type)
	row("path", sh.Path)
	row("permissions", fmt.Sprintf("%s (%d)", sh.Permissions, int(sh.Permissions)))
	if sh.Type == models.ShareTypePublicLink {
		row("url", sh.URL())
		row("password", yesNo(sh.PasswordProtected))
		row("upload", yesNo(sh.PublicUpload))
	} else {
		row("share with", sh.ShareWith)
	}
	exp := "never"
	if sh.Expiration != nil {
		exp = protocol.FormatDate(*sh.Expiration)
	}
	row("expires", exp)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func getShares(ctx context.Context, s *session, args []string) error {
	fs := newFlagSet("getshares")
	var opts ocs.ListOptions
	var local bool
	fs.StringVar(&opts.Path, "path", "", "only shares of this path")
	fs.BoolVar(&local, "local", false, "treat -path as a local path and resolve it")
	fs.BoolVar(&opts.Reshares, "reshares", false, "include shares by other users")
	fs.BoolVar(&opts.Subfiles, "subfiles", false, "list shares of the items inside -path")
	rest, err := parseInterspersed(fs, args)
	if err != nil || len(rest) > 0 {
		return errUsage
	}
	if local {
		if opts.Path == "" {
			return errUsage
		}
		if opts.Path, err = s.cloudPath(opts.Path); err != nil {
			return err
		}
	}

	shares, err := s.client.ListShares(ctx, opts)
	if err != nil {
		return err
	}
	for _, sh := range shares {
		printShareLine(s.out, sh)
	}
	return nil
}

func getShare(ctx context.Context, s *session, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	sh, err := s.client.GetShare(ctx, id)
	if err != nil {
		return err
	}
	printShare(s.out, sh)
	return nil
}

func deleteShare(ctx context.Context, s *session, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	if err := s.client.DeleteShare(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "deleted share #%d\n", id)
	return nil
}

func createShare(ctx context.Context, s *session, args []string) error {
	fs := newFlagSet("create")
	var (
		opts      ocs.CreateOptions
		shareType string
		local     bool
	)
	fs.StringVar(&opts.Path, "path", "", "cloud path to share")
	fs.BoolVar(&local, "local", false, "treat -path as a local path and resolve it")
	fs.StringVar(&shareType, "share-type", "public", "user, group or public (0, 1, 3)")
	fs.StringVar(&opts.ShareWith, "share-with", "", "user or group to share with")
	fs.BoolVar(&opts.PublicUpload, "public-upload", false, "allow uploads into a public folder link")
	fs.StringVar(&opts.Password, "share-password", "", "password protecting a public link")
	perms := addPermissionFlags(fs)
	rest, err := parseInterspersed(fs, args)
	if err != nil || len(rest) > 0 || opts.Path == "" {
		return errUsage
	}

	if opts.ShareType, err = models.ParseShareType(shareType); err != nil {
		return err
	}
	if local {
		if opts.Path, err = s.cloudPath(opts.Path); err != nil {
			return err
		}
	}
	req, err := perms.request()
	if err != nil {
		return err
	}
	if mask, ok := req.Resolve(opts.ShareType); ok {
		opts.Permissions = &mask
	}

	sh, err := s.client.CreateShare(ctx, opts)
	if err != nil {
		return err
	}
	printShareLine(s.out, sh)
	return nil
}

func updateShare(ctx context.Context, s *session, args []string) error {
	fs := newFlagSet("update")
	var (
		upload        optionalBool
		password      string
		clearPassword bool
		expire        string
		clearExpire   bool
	)
	fs.Var(&upload, "public-upload", "allow or forbid uploads into a public folder link")
	fs.StringVar(&password, "share-password", "", "set the link password")
	fs.BoolVar(&clearPassword, "clear-password", false, "remove the link password")
	fs.StringVar(&expire, "expire", "", "expiration date, DD-MM-YYYY")
	fs.BoolVar(&clearExpire, "clear-expire", false, "remove the expiration date")
	perms := addPermissionFlags(fs)
	rest, err := parseInterspersed(fs, args)
	if err != nil {
		return errUsage
	}
	id, err := singleID(rest)
	if err != nil {
		return err
	}
	if (password != "" && clearPassword) || (expire != "" && clearExpire) {
		return errUsage
	}

	opts := ocs.UpdateOptions{PublicUpload: upload.ptr()}
	switch {
	case clearPassword:
		empty := ""
		opts.Password = &empty
	case password != "":
		opts.Password = &password
	}
	switch {
	case clearExpire:
		var none time.Time
		opts.Expiration = &none
	case expire != "":
		d, err := protocol.ParseDate(expire)
		if err != nil {
			return err
		}
		opts.Expiration = &d
	}
	req, err := perms.request()
	if err != nil {
		return err
	}

	sh, err := s.client.GetShare(ctx, id)
	if err != nil {
		return err
	}
	if mask, ok := req.ResolveFrom(sh.Permissions); ok {
		opts.Permissions = &mask
	}
	if err := sh.Update(ctx, opts); err != nil {
		return err
	}
	s.log.Info("share updated", zap.Int("id", sh.ID))
	printShare(s.out, sh)
	return nil
}

func resolvePath(_ context.Context, s *session, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := s.cloudPath(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, p)
	return nil
}

func linkPath(ctx context.Context, s *session, args []string) error {
	fs := newFlagSet("link")
	var (
		adopt    bool
		password string
	)
	fs.BoolVar(&adopt, "adopt", false, "move files outside every sync folder into InstantUpload first")
	fs.StringVar(&password, "share-password", "", "password for a newly created link")
	rest, err := parseInterspersed(fs, args)
	if err != nil || len(rest) != 1 {
		return errUsage
	}

	local, err := filepath.Abs(rest[0])
	if err != nil {
		return err
	}
	if adopt {
		folders, err := s.folders()
		if err != nil {
			return err
		}
		moved, err := syncfolder.Adopt(local, folders)
		if err != nil {
			return err
		}
		if moved != local {
			s.log.Info("moved into instant upload folder", zap.String("from", local), zap.String("to", moved))
			local = moved
		}
	}
	cloud, err := s.cloudPath(local)
	if err != nil {
		return err
	}

	sh, err := publicLink(ctx, s.client, cloud)
	if err != nil {
		return err
	}
	if sh == nil {
		sh, err = s.client.CreateShare(ctx, ocs.CreateOptions{
			Path:      cloud,
			ShareType: models.ShareTypePublicLink,
			Password:  password,
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(s.out, sh.URL())
	return nil
}

// publicLink returns the first public link on cloudPath, or nil.
func publicLink(ctx context.Context, c *ocs.Client, cloudPath string) (*ocs.Share, error) {
	shares, err := c.ListShares(ctx, ocs.ListOptions{Path: cloudPath})
	if err != nil {
		return nil, err
	}
	for _, sh := range shares {
		if sh.Type == models.ShareTypePublicLink {
			return sh, nil
		}
	}
	return nil, nil
}
