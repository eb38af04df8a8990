package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/GriffinCanCode/extsync/internal/domain/projection"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

// consoleNotifier prints advisories as colored one-liners.
type consoleNotifier struct {
	w io.Writer
}

func newConsoleNotifier(w io.Writer) consoleNotifier {
	return consoleNotifier{w: w}
}

// Notify implements advisory.Notifier.
func (n consoleNotifier) Notify(a advisory.Advisory) {
	fmt.Fprintln(n.w, formatAdvisory(a))
}

func formatAdvisory(a advisory.Advisory) string {
	var prefix string
	switch a.Level {
	case advisory.LevelError:
		prefix = color.RedString("✗")
	case advisory.LevelWarning:
		prefix = color.YellowString("⚠")
	default:
		prefix = color.GreenString("✓")
	}

	line := prefix + " " + a.Message
	if len(a.Actions) > 0 {
		line += " " + color.HiBlackString("[%s]", strings.Join(a.Actions, ", "))
	}
	return line
}

// printTree writes the catalog as an indented tree, one registry per block.
func printTree(w io.Writer, tree *projection.Tree, roots []projection.Node) {
	if len(roots) == 0 {
		fmt.Fprintln(w, color.HiBlackString("No extensions found."))
		return
	}

	for i, root := range roots {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", color.CyanString(root.Label), color.HiBlackString("(%s)", root.Tooltip))
		for _, leaf := range tree.Children(root) {
			fmt.Fprintf(w, "  %-32s %s\n", leaf.ExtensionID, describeLeaf(leaf))
		}
	}

	if badge := tree.Badge(); badge.Value > 0 {
		fmt.Fprintf(w, "\n%s\n", color.YellowString(badge.Tooltip))
	}
}

func describeLeaf(n projection.Node) string {
	switch {
	case strings.HasSuffix(n.Description, " - Outdated"):
		return color.YellowString(n.Description)
	case strings.HasSuffix(n.Description, " - Installed"):
		return color.GreenString(n.Description)
	default:
		return n.Description
	}
}
