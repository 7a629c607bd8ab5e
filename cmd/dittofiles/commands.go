package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/marmos91/dittofiles/pkg/config"
	"github.com/marmos91/dittofiles/pkg/files"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
)

// clientFlags are shared by the commands acting on behalf of a user.
type clientFlags struct {
	config *string
	user   *string
	admin  *bool
	json   *bool
}

func newClientFlags(fs *flag.FlagSet) *clientFlags {
	return &clientFlags{
		config: fs.String("config", "", "Path to the configuration file"),
		user:   fs.String("user", os.Getenv("USER"), "Act as this user"),
		admin:  fs.Bool("admin", false, "Act with administrator rights"),
		json:   fs.Bool("json", false, "Print results as JSON"),
	}
}

func (f *clientFlags) session() (*session.Session, error) {
	if *f.user == "" {
		return nil, fmt.Errorf("no user: pass --user")
	}
	perms := []session.Permission{session.PermissionFiles}
	if *f.admin {
		perms = append(perms, session.PermissionAdmin)
	}
	return session.New(*f.user, perms...), nil
}

// open builds the environment and the caller's session.
func (f *clientFlags) open(ctx context.Context) (*environment, *session.Session, error) {
	sess, err := f.session()
	if err != nil {
		return nil, nil, err
	}
	env, err := setup(ctx, *f.config, false)
	if err != nil {
		return nil, nil, err
	}
	return env, sess, nil
}

func runPut(args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	cf := newClientFlags(fs)
	name := fs.String("name", "", "Remote file name (defaults to the local base name)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: put <local-file> [remote-folder]")
	}
	local := fs.Arg(0)
	remoteDir := fs.Arg(1)
	if *name == "" {
		*name = filepath.Base(local)
	}

	ctx := context.Background()
	env, sess, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	digest, size, err := hashFile(env.ctrl, local)
	if err != nil {
		return err
	}

	f, err := env.ctrl.Create(ctx, files.Request{
		Session: sess,
		Method:  "POST",
		Body: files.FileInput{
			OwnerID: sess.UserID,
			Name:    *name,
			Path:    remoteDir,
			Hash:    digest,
			Size:    size,
		},
	})
	if err != nil {
		return err
	}

	// Another record already carries these bytes
	if f.Status == metadata.StatusDefault {
		return printFiles(cf, f)
	}

	in, err := os.Open(local)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	err = env.ctrl.UploadBinary(ctx, files.Request{
		Session:    sess,
		Method:     "PUT",
		Parameters: map[string]string{files.ParamFile: digest},
		Stream:     in,
	})
	if err != nil {
		return err
	}

	f, err = env.ctrl.Get(ctx, files.Request{
		Session:    sess,
		Parameters: map[string]string{files.ParamFile: f.ID},
	})
	if err != nil {
		return err
	}
	return printFiles(cf, f)
}

func hashFile(ctrl *files.Controller, path string) (string, int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return "", 0, err
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("%s is a directory", path)
	}

	digest, err := ctrl.Hasher().Sum(in)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return digest, info.Size(), nil
}

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	cf := newClientFlags(fs)
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: get <id> [local-file]")
	}

	ctx := context.Background()
	env, sess, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	rc, f, err := env.ctrl.DownloadBinary(ctx, files.Request{
		Session:    sess,
		Method:     "GET",
		Parameters: map[string]string{files.ParamFile: fs.Arg(0)},
	})
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	dest := fs.Arg(1)
	if dest == "" {
		dest = f.Name
	}
	if dest == "-" {
		_, err = io.Copy(os.Stdout, rc)
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func runMkdir(args []string) error {
	fs := flag.NewFlagSet("mkdir", flag.ExitOnError)
	cf := newClientFlags(fs)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mkdir <path>")
	}
	segments := files.SplitPath(fs.Arg(0))
	if len(segments) == 0 {
		return fmt.Errorf("mkdir: the root folder always exists")
	}

	ctx := context.Background()
	env, sess, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	f, err := env.ctrl.Create(ctx, files.Request{
		Session: sess,
		Method:  "POST",
		Body: files.FileInput{
			OwnerID: sess.UserID,
			Name:    segments[len(segments)-1],
			Path:    files.JoinPath(segments[:len(segments)-1]),
		},
	})
	if err != nil {
		return err
	}
	return printFiles(cf, f)
}

func runList(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	cf := newClientFlags(fs)
	_ = fs.Parse(args)

	q, err := parseFilters(fs.Args())
	if err != nil {
		return err
	}

	ctx := context.Background()
	env, sess, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	out, err := env.ctrl.GetAll(ctx, files.Request{
		Session: sess,
		Method:  "GET",
		Query:   q,
	})
	if err != nil {
		return err
	}
	return printFiles(cf, out...)
}

// parseFilters turns "path=/docs", "size>10" or "status=DEFAULT" into a query.
func parseFilters(args []string) (metadata.Query, error) {
	raw := make(map[string]any, len(args))
	for _, arg := range args {
		i := strings.IndexAny(arg, "=<>")
		if i <= 0 {
			return nil, fmt.Errorf("malformed filter %q (want field=value, field<value or field>value)", arg)
		}
		field, value := arg[:i], arg[i+1:]
		raw[arg[:i+1]] = filterValue(metadata.Field(field), value)
	}
	return metadata.ParseQuery(raw)
}

func filterValue(field metadata.Field, value string) any {
	if field == metadata.FieldStatus {
		for _, s := range []metadata.FileStatus{metadata.StatusNotUploaded, metadata.StatusDefault, metadata.StatusFolder} {
			if strings.EqualFold(value, s.String()) {
				return s
			}
		}
	}
	if field == metadata.FieldSize || field == metadata.FieldStatus {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return value
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	cf := newClientFlags(fs)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rm <id>")
	}

	ctx := context.Background()
	env, sess, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	return env.ctrl.Delete(ctx, files.Request{
		Session:    sess,
		Method:     "DELETE",
		Parameters: map[string]string{files.ParamFile: fs.Arg(0)},
	})
}

func runUsage(args []string) error {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	cf := newClientFlags(fs)
	owner := fs.String("owner", "", "Report on this owner instead of the caller (requires --admin)")
	_ = fs.Parse(args)

	ctx := context.Background()
	env, sess, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	req := files.Request{Session: sess, Method: "GET"}
	if *owner != "" {
		req.Parameters = map[string]string{files.ParamUser: *owner}
	}
	u, err := env.ctrl.Usage(ctx, req)
	if err != nil {
		return err
	}

	if *cf.json {
		return printJSON(u)
	}
	capacity := "unlimited"
	if u.Capacity > 0 {
		capacity = strconv.FormatInt(u.Capacity, 10)
	}
	fmt.Printf("owner=%s files=%d used=%d capacity=%s\n", u.OwnerID, u.Files, u.Used, capacity)
	return nil
}

func runGC(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the configuration file")
	dryRun := fs.Bool("dry-run", false, "Report what would be removed without deleting")
	_ = fs.Parse(args)

	ctx := context.Background()
	env, err := setup(ctx, *configPath, false)
	if err != nil {
		return err
	}
	defer env.close()

	gcCfg := env.cfg.GC
	gcCfg.DryRun = gcCfg.DryRun || *dryRun
	collector, err := config.CreateCollector(&gcCfg, env.store, env.blobs, env.ctrl, env.metrics)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, gcCfg.Timeout)
	defer cancel()

	stats, err := collector.RunNow(runCtx)
	if err != nil {
		return err
	}
	fmt.Println(stats.Summary())
	return nil
}

func printFiles(cf *clientFlags, list ...*metadata.File) error {
	if *cf.json {
		return printJSON(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSIZE\tUPDATED\tPATH")
	for _, f := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			f.ID, f.Status, f.Size, f.Updated.Format(time.RFC3339), f.FullPath())
	}
	return w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
