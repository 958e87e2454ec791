package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/config"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to objbridge.toml (optional)")
		dumpFile    = flag.String("dump", "", "Write a CBOR snapshot of the bridge to this file")
		readFile    = flag.String("read", "", "Print a snapshot written by -dump and exit")
		schema      = flag.Bool("schema", false, "Print the JSON schema of the configuration and exit")
		from        = flag.String("from", "", "Class of the object to cast")
		as          = flag.String("as", "", "Static class to view the object as before casting (default -from)")
		to          = flag.String("to", "", "Target class of the cast")
		interactive = flag.Bool("i", false, "Interactive cast explorer")
	)
	flag.Parse()

	if *schema {
		data, err := config.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	if *readFile != "" {
		if err := printSnapshotFile(*readFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if (*from == "") != (*to == "") {
		fmt.Fprintln(os.Stderr, "Usage: bridgectl [-config file] [-dump file]")
		fmt.Fprintln(os.Stderr, "       bridgectl -from <class> [-as <class>] -to <class>")
		fmt.Fprintln(os.Stderr, "       bridgectl -read <file>")
		fmt.Fprintln(os.Stderr, "       bridgectl -schema")
		fmt.Fprintln(os.Stderr, "       bridgectl -i  (interactive mode)")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *dumpFile, *from, *as, *to); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, dumpFile, from, as, to string) error {
	ctx := context.Background()

	b, err := bridge.New(ctx, bridge.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	defer b.Close(ctx)

	d, err := newDemo(b)
	if err != nil {
		return fmt.Errorf("expose classes: %w", err)
	}
	defer d.close()

	if from != "" {
		s, err := d.sampleFor(from, as)
		if err != nil {
			return err
		}
		r, err := d.cast(s, to)
		if err != nil {
			return err
		}
		fmt.Println(r)
		return nil
	}

	printSnapshot(b.Snapshot())

	fmt.Printf("\nCasts:\n")
	for _, s := range d.samples() {
		for _, c := range b.Classes() {
			r, err := d.cast(s, c.Name())
			if err != nil {
				return err
			}
			if r.ptr != nil && c != s.view {
				fmt.Printf("  %s\n", r)
			}
		}
	}

	if dumpFile != "" {
		data, err := b.EncodeSnapshot()
		if err != nil {
			return err
		}
		if err := os.WriteFile(dumpFile, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Printf("\nSnapshot written to %s (%d bytes)\n", dumpFile, len(data))
	}
	return nil
}

func printSnapshotFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	s, err := bridge.DecodeSnapshot(data)
	if err != nil {
		return err
	}
	printSnapshot(s)
	return nil
}

func printSnapshot(s bridge.Snapshot) {
	fmt.Printf("Registrations: %d\n", len(s.Registrations))
	for _, r := range s.Registrations {
		var flags []string
		if r.ToForeign {
			flags = append(flags, "to-foreign")
		}
		if r.HasClass {
			flags = append(flags, "class")
		}
		if r.Shared {
			flags = append(flags, "shared")
		}
		fmt.Printf("  %-4d %s", r.Key, r.Type)
		if r.ForeignType != "" {
			fmt.Printf(" (%s)", r.ForeignType)
		}
		if len(flags) > 0 {
			fmt.Printf(" [%s]", strings.Join(flags, ", "))
		}
		fmt.Printf(" lvalues=%d rvalues=%d\n", len(r.Lvalues), len(r.Rvalues))
	}

	fmt.Printf("\nClasses:\n")
	for _, c := range s.Classes {
		fmt.Printf("  %s (%s)", c.Name, c.Type)
		if len(c.Bases) > 0 {
			fmt.Printf(" : %s", strings.Join(c.Bases, ", "))
		}
		if c.Polymorphic {
			fmt.Printf(" polymorphic")
		}
		fmt.Println()
		for _, m := range c.Methods {
			fmt.Printf("      .%s\n", m)
		}
	}

	fmt.Printf("\nEdges:\n")
	for _, e := range s.Edges {
		arrow := "->"
		if e.Downcast {
			arrow = "~>"
		}
		fmt.Printf("  %s %s %s\n", e.Src, arrow, e.Dst)
	}
	fmt.Printf("\nCache entries: %d\n", s.CacheEntries)
}
