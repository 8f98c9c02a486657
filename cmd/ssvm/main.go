// Command ssvm is the unified build/run/exec driver for the SSVM toolchain
// (spec §6.1): it compiles a project's entry source (plus everything it
// transitively imports) to a .ssasm assembly, executes a previously built
// assembly, or does both in one step.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/diagnostic"
)

const version = "1.2.0"

func main() {
	app := &cli.App{
		Name:    "ssvm",
		Usage:   "build, run, and inspect SSVM bytecode",
		Version: version,
		Commands: []*cli.Command{
			buildCommand(),
			runCommand(),
			execCommand(),
			replCommand(),
			{
				Name:  "version",
				Usage: "print the ssvm version",
				Action: func(c *cli.Context) error {
					fmt.Println("ssvm version", version)
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return repl(c.Bool("verbose"))
			}
			return cli.ShowAppHelp(c)
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, formatCLIError(err))
		os.Exit(diagnostic.ExitCodeFor(err))
	}
}

func formatCLIError(err error) string {
	return fmt.Sprintf("ssvm: %s", err)
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "compile a project to a .ssasm assembly",
		ArgsUsage: "<project>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "Debug", Usage: "Debug or Release"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output assembly path"},
		},
		Action: func(c *cli.Context) error {
			projectPath := c.Args().First()
			if projectPath == "" {
				return diagnostic.New(diagnostic.KindAssemblyIO, "build requires a project file argument")
			}
			asm, err := buildAssembly(projectPath)
			if err != nil {
				return err
			}
			out := c.String("output")
			if out == "" {
				out = defaultOutputPath(c.String("config"), asm.Manifest.Name)
			}
			if err := writeAssembly(asm, out); err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a previously built .ssasm assembly",
		ArgsUsage: "<assembly>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stats", Usage: "print VM statistics after execution"},
		},
		Action: func(c *cli.Context) error {
			asmPath := c.Args().First()
			if asmPath == "" {
				return diagnostic.New(diagnostic.KindAssemblyIO, "run requires an assembly file argument")
			}
			asm, err := readAssembly(asmPath)
			if err != nil {
				return err
			}
			return runAssembly(asm, c.Bool("verbose"), c.Bool("stats"))
		},
	}
}

func execCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "build then run a project; --output also writes the assembly to disk",
		ArgsUsage: "<project>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "Debug", Usage: "Debug or Release"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output assembly path"},
			&cli.BoolFlag{Name: "stats", Usage: "print VM statistics after execution"},
		},
		Action: func(c *cli.Context) error {
			projectPath := c.Args().First()
			if projectPath == "" {
				return diagnostic.New(diagnostic.KindAssemblyIO, "exec requires a project file argument")
			}
			asm, err := buildAssembly(projectPath)
			if err != nil {
				return err
			}
			if out := c.String("output"); out != "" {
				if err := writeAssembly(asm, out); err != nil {
					return err
				}
			}
			return runAssembly(asm, c.Bool("verbose"), c.Bool("stats"))
		},
	}
}

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "start an interactive read-eval-print loop",
		Action: func(c *cli.Context) error {
			return repl(c.Bool("verbose"))
		},
	}
}

func defaultOutputPath(config, name string) string {
	return filepath.Join("bin", config, name+".ssasm")
}

func writeAssembly(asm *bytecode.Assembly, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "creating output directory for %q", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "creating %q", path)
	}
	defer f.Close()
	if err := bytecode.Encode(asm, f); err != nil {
		return diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "encoding assembly to %q", path)
	}
	return nil
}

func readAssembly(path string) (*bytecode.Assembly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "opening %q", path)
	}
	defer f.Close()
	asm, err := bytecode.Decode(f)
	if err != nil {
		return nil, diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "decoding %q", path)
	}
	return asm, nil
}
