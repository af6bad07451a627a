package main

import (
	"flag"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/snapline/snapagent/agent"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	oldDir := flag.String("old", "", "Directory to scan as the 'before' inventory")
	newDir := flag.String("new", "", "Directory to scan as the 'after' inventory")
	extensions := flag.String("extensions", strings.Join(agent.DefaultSourceExtensions, ","), "Comma-separated source extensions to include")
	flag.Parse()

	if *oldDir == "" || *newDir == "" {
		log.Fatalf("%sboth -old and -new must be provided", agent.ErrorLogPrefix)
	}
	exts := strings.Split(*extensions, ",")

	oldInv, err := agent.Scan(*oldDir, exts, nil)
	if err != nil {
		log.Fatalf("%sfailed to scan -old: %v", agent.ErrorLogPrefix, err)
	}
	newInv, err := agent.Scan(*newDir, exts, nil)
	if err != nil {
		log.Fatalf("%sfailed to scan -new: %v", agent.ErrorLogPrefix, err)
	}

	text, err := inventoryDiff(oldInv, newInv)
	if err != nil {
		log.Fatalf("%sfailed to diff inventories: %v", agent.ErrorLogPrefix, err)
	}
	if text == "" {
		fmt.Println("no change: inventories are identical")
		return
	}
	fmt.Print(text)
}

// inventoryDiff renders a unified diff between two inventories' file lists.
// Each line is "relative/path content-hash", so a changed file shows as a
// removal of its old-hash line and an addition of its new-hash line, while an
// added or removed file shows as a pure addition or removal.
func inventoryDiff(oldInv, newInv *agent.Inventory) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(inventoryLines(oldInv)),
		B:        difflib.SplitLines(inventoryLines(newInv)),
		FromFile: "old",
		ToFile:   "new",
		Context:  0,
	}
	return difflib.GetUnifiedDiffString(diff)
}

func inventoryLines(inv *agent.Inventory) string {
	lines := make([]string, 0, len(inv.Entries))
	for _, e := range inv.Entries {
		lines = append(lines, fmt.Sprintf("%s %s", path.Join(e.Segments...), e.ContentHash))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
