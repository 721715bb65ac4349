package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/funvibe/formula/internal/asserts"
	"github.com/funvibe/formula/internal/classes"
	"github.com/funvibe/formula/internal/config"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/formula"
	"github.com/funvibe/formula/internal/journal"
)

// setup applies settings and installs a registry over the class
// directory.
func setup(s *config.Settings) *classes.Registry {
	formula.Configure(s)
	return classes.Init(classes.NewDirLoader(s.ClassDir))
}

func evalCommand(args []string) error {
	fs, settingsPath := newFlagSet("eval")
	backend := fs.String("backend", "", "execution backend: vm or tree (default from settings)")
	disasm := fs.Bool("disasm", false, "print the bytecode of compiled subtrees")
	showType := fs.Bool("type", false, "print the static result type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("formula eval: exactly one expression required")
	}
	s, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	switch *backend {
	case "":
	case config.BackendVM, config.BackendTree:
		s.Backend = *backend
	default:
		return fmt.Errorf("formula eval: unknown backend %q", *backend)
	}
	r := setup(s)

	scope := evaluator.MapCallableFrom([]string{config.LibField}, []evaluator.Object{r.Library()})
	var out bytes.Buffer
	err = asserts.Recover(func() {
		f, err := formula.New(fs.Arg(0), scope.Definition())
		if err != nil {
			panic(err)
		}
		if *showType {
			fmt.Fprintf(&out, "%s\n", mutedText("type: "+f.QueryType().String()))
		}
		if *disasm {
			out.WriteString(f.Disassemble())
		}
		res, err := f.Execute(scope)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(&out, evaluator.Repr(res))
	})
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out.Bytes())
	return err
}

func checkCommand(args []string) error {
	fs, settingsPath := newFlagSet("check")
	watch := fs.Bool("watch", false, "keep running and re-check classes when their files change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	r := setup(s)

	names := fs.Args()
	if len(names) == 0 {
		names = r.Names()
	}
	failed := checkClasses(r, names)

	if !*watch {
		if failed > 0 {
			return fmt.Errorf("%d of %d classes failed", failed, len(names))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	w, err := r.Watch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, mutedText("watching "+s.ClassDir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case name, ok := <-w.Changes():
			if !ok {
				return nil
			}
			changed := append([]string{name}, w.Apply()...)
			r.Invalidate(name)
			checkClasses(r, dedupe(changed))
		}
	}
}

// checkClasses builds each class, which runs its embedded tests, and
// reports the outcome. It returns the number of failures.
func checkClasses(r *classes.Registry, names []string) int {
	failed := 0
	for _, name := range names {
		if !r.Exists(name) {
			fmt.Fprintf(os.Stderr, "%s %s: removed\n", mutedText("----"), name)
			continue
		}
		if err := asserts.Recover(func() { r.Class(name) }); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", errorText("FAIL"), name, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", successText("ok  "), name)
	}
	return failed
}

func dedupe(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func classCommand(args []string) error {
	fs, settingsPath := newFlagSet("class")
	ctorArgs := fs.String("args", "", "constructor arguments as a JSON object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("formula class: class name required")
	}
	s, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	r := setup(s)

	var argv evaluator.Object = evaluator.NULL
	if *ctorArgs != "" {
		if argv, err = evaluator.FromJSON(*ctorArgs, nil); err != nil {
			return fmt.Errorf("constructor arguments: %w", err)
		}
	}
	var inst *classes.Instance
	if err := asserts.Recover(func() { inst = r.Create(fs.Arg(0), argv) }); err != nil {
		return err
	}
	data, err := classes.Serialize(inst)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func diffCommand(args []string) error {
	fs, settingsPath := newFlagSet("diff")
	raw := fs.Bool("data", false, "print the encoded diff instead of its JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("formula diff: before and after files required")
	}
	s, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	r := setup(s)

	graphs := make([]*classes.Instance, 2)
	for i, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if graphs[i], err = r.Deserialize(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	d, err := classes.GenerateDiff(graphs[0], graphs[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s\n", mutedText(fmt.Sprintf("diff: %s, %s encoded",
		humanize.Bytes(uint64(d.Size)), humanize.Bytes(uint64(len(d.Data))))))
	if *raw {
		fmt.Println(d.Data)
		return nil
	}
	text, err := d.JSON()
	if err != nil {
		return err
	}
	return printJSON(text)
}

func replayCommand(args []string) error {
	fs, settingsPath := newFlagSet("replay")
	journalPath := fs.String("journal", "", "journal file (default from settings)")
	upTo := fs.Int64("to", 0, "stop after this sequence number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	if *journalPath != "" {
		s.Journal = *journalPath
	}
	if s.Journal == "" {
		return errors.New("formula replay: no journal configured")
	}
	r := setup(s)

	j, err := journal.Open(s.Journal)
	if err != nil {
		return err
	}
	defer j.Close()
	ctx := context.Background()

	if fs.NArg() == 0 {
		return listJournal(ctx, j)
	}
	root, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("formula replay: %w", err)
	}
	inst, n, err := j.Replay(ctx, r, root, *upTo)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s\n", mutedText(fmt.Sprintf("applied %s diffs", humanize.Comma(int64(n)))))
	data, err := classes.Serialize(inst)
	if err != nil {
		return err
	}
	return printJSON(data)
}

func listJournal(ctx context.Context, j *journal.Journal) error {
	st, err := j.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d snapshots, %s diffs, %s\n", st.Snapshots, humanize.Comma(int64(st.Diffs)), humanize.Bytes(uint64(st.Bytes)))
	roots, err := j.Roots(ctx)
	if err != nil {
		return err
	}
	for _, root := range roots {
		entries, err := j.Entries(ctx, root, 0)
		if err != nil {
			return err
		}
		last := "never"
		if len(entries) > 0 {
			last = humanize.Time(entries[len(entries)-1].At)
		}
		fmt.Printf("%s  %4d diffs  last %s\n", root, len(entries), last)
	}
	return nil
}

func printJSON(data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := os.Stdout.Write(buf.Bytes())
	return err
}
