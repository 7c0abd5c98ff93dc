package cli

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/Azelphur/ownCloud-share-tools/internal/models"
	"github.com/Azelphur/ownCloud-share-tools/internal/permission"
)

// permissionFlags registers -permissions, -allow-<flag> and -deny-<flag>.
type permissionFlags struct {
	base  int
	allow map[models.Permission]*bool
	deny  map[models.Permission]*bool
}

func addPermissionFlags(fs *flag.FlagSet) *permissionFlags {
	pf := &permissionFlags{
		allow: make(map[models.Permission]*bool),
		deny:  make(map[models.Permission]*bool),
	}
	fs.IntVar(&pf.base, "permissions", -1, "explicit base permission mask (0-31)")
	for _, f := range permission.Flags {
		name := permission.FlagName(f)
		pf.allow[f] = fs.Bool("allow-"+name, false, "grant "+name+" permission")
		pf.deny[f] = fs.Bool("deny-"+name, false, "revoke "+name+" permission")
	}
	return pf
}

// request collects the parsed flags. Allows are applied before denies
// whatever order they appeared in on the command line.
func (pf *permissionFlags) request() (*permission.Request, error) {
	req := &permission.Request{}
	if pf.base >= 0 {
		base := models.Permission(pf.base)
		if !base.Valid() {
			return nil, fmt.Errorf("invalid -permissions %d", pf.base)
		}
		req.SetBase(base)
	}
	for _, f := range permission.Flags {
		if *pf.allow[f] {
			req.Allow(f)
		}
		if *pf.deny[f] {
			req.Deny(f)
		}
	}
	return req, nil
}

// optionalBool is a bool flag that remembers whether it was given.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

func (b *optionalBool) ptr() *bool {
	if !b.set {
		return nil
	}
	v := b.value
	return &v
}

// parseInterspersed parses fs over args, allowing flags after positional
// arguments, and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
