package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jwiseman/r4/internal/log"
	"github.com/muesli/reflow/wordwrap"
	appCli "github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const grepLongDescription = `Searches the named files for lines containing a match to the given
pattern. By default, grep prints the matching lines.

If a file is specified without a revision, then all revisions of the
file are searched. Revision specifiers and revision ranges control
which revisions of a file will be searched:

   r4 grep pattern file#head
   r4 grep pattern file#4
   r4 grep pattern file#12,20
   r4 grep pattern file@release_4

p4 wildcards can be used, giving the ability to do recursive greps:

   r4 grep pattern ./...
   r4 grep pattern ./.../file

The -i/--ignore-case flag causes the matching to be done while ignoring
case distinctions.

The -l/--files-with-matches flag suppresses normal output and instead
prints the name of each file that would have produced output, with
revision specifiers or revision ranges indicating which revisions of
the file contain matches.

The -v/--invert-match flag inverts the sense of matching, to select
non-matching lines.`

const statusLongDescription = `Lists all locally modified files under the specified paths (if no
paths are supplied the current working directory is used).

The --no-ignore flag forces files that are ignored because they matched
a pattern in a .r4ignore file to be printed with an 'I' prefix.

The first column in the output is one character wide, and indicates the
file's status:

   '?' Item is not under version control
   'A' Added
   'D' Deleted
   'M' Modified
   'O' Opened for editing--may be unchanged, branched or integrated
   'I' Ignored (only with --no-ignore)`

// customCommandSummaries is the listing appended to "r4 help commands".
var customCommandSummaries = []struct{ name, short string }{
	{"grep", "Search across revisions of files for lines matching a pattern"},
	{"status", "Print the status of working copy files and directories"},
	{"version", "Print r4 version information"},
	{"help", "Print help about p4 and the custom r4 commands"},
}

var longDescriptions = map[string]string{
	"grep":   grepLongDescription,
	"status": statusLongDescription,
}

// helpCommand returns the help subcommand. Custom commands get their own
// long-form help; everything else is forwarded to p4 help with "p4"
// rewritten to "r4" in the output.
func helpCommand() *appCli.Command {
	return &appCli.Command{
		Name:      "help",
		Usage:     "Print help about p4 and the custom r4 commands",
		ArgsUsage: "[command]",
		Action:    handleHelpAction,
	}
}

func handleHelpAction(ctx context.Context, cmd *appCli.Command) error {
	args := cmd.Args().Slice()

	// "r4 help help" intentionally falls through to p4.
	if len(args) == 1 && args[0] != "help" {
		if text, ok := longDescriptions[args[0]]; ok {
			fmt.Println(wrapForTerminal(text))
			return nil
		}
	}

	_, svc, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	out, err := svc.Help(ctx, args)
	if err != nil {
		return err
	}
	fmt.Print(strings.ReplaceAll(out, "p4", "r4"))

	if len(args) == 1 && args[0] == "commands" {
		fmt.Println("    Custom commands:")
		fmt.Println()
		for _, c := range customCommandSummaries {
			fmt.Printf("\t%-11s %s\n", c.name, c.short)
		}
	}
	return nil
}

func wrapForTerminal(text string) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
		width = w
	}
	return wordwrap.String(text, width)
}
