// Command snapagentctl is a manual test harness for the snapagent core: it
// scans a working directory, sets a single breakpoint from flags, and lets
// the operator simulate break events from stdin, since a real host runtime's
// debug hook is out of scope for this core (see agent.HookSource).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/snapline/snapagent/agent"
)

// fakeHook is a manually driven agent.HookSource: "hit <path> <line>" typed
// at the prompt calls dispatch directly, standing in for the native runtime
// reaching an instrumented location.
type fakeHook struct {
	dispatch func(agent.BreakEvent)
}

func (h *fakeHook) SetBreak(path string, line int32) error {
	log.Printf("hook: break armed at %s:%d", path, line)
	return nil
}

func (h *fakeHook) ClearBreak(path string, line int32) error {
	log.Printf("hook: break disarmed at %s:%d", path, line)
	return nil
}

func (h *fakeHook) Attach(dispatch func(agent.BreakEvent)) error {
	h.dispatch = dispatch
	return nil
}

func (h *fakeHook) Detach() error {
	h.dispatch = nil
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags)

	path := flag.String("path", "", "Source path hint for the breakpoint (suffix-matched against the inventory)")
	line := flag.Int("line", 0, "Line number for the breakpoint")
	condition := flag.String("condition", "", "Optional condition expression")
	exprList := flag.String("expressions", "", "Comma-separated watch expressions")
	logFormat := flag.String("logMessageFormat", "", "If set, breakpoint action is LOG using this {n}-placeholder format")

	// ParseFlags defines and parses -workingDirectory and the capture.*
	// bounds; it must see path/line/condition/expressions/logMessageFormat
	// already registered above, since it calls flag.Parse() itself.
	cfg, err := agent.ParseFlags(nil)
	if err != nil {
		log.Fatalf("%s%v", agent.ErrorLogPrefix, err)
	}

	if *path == "" || *line < 1 {
		log.Fatalf("%susage: -workingDirectory <dir> -path <file> -line <n> [-condition ...] [-expressions a,b,c] [-logMessageFormat ...]", agent.ErrorLogPrefix)
	}

	inventory, err := agent.Scan(cfg.WorkingDirectory, agent.DefaultSourceExtensions, log.Default())
	if err != nil {
		log.Fatalf("%sscan failed: %v", agent.ErrorLogPrefix, err)
	}
	log.Printf("inventory: %d files, aggregate hash %s", len(inventory.Entries), inventory.AggregateHash)

	hook := &fakeHook{}
	facade := agent.Create(log.Default(), *cfg, inventory, hook)
	defer facade.Close()

	sink := agent.NewMemorySink()
	facade.UseSink(sink)

	bp := &agent.Breakpoint{
		ID:        1,
		Location:  agent.SourceLocation{Path: *path, Line: int32(*line)},
		Condition: *condition,
	}
	if *exprList != "" {
		bp.Expressions = strings.Split(*exprList, ",")
	}
	if *logFormat != "" {
		bp.Action = agent.ActionLog
		bp.LogMessageFormat = *logFormat
	}

	setErr := make(chan error, 1)
	facade.Set(bp, func(err error) { setErr <- err })
	if err := <-setErr; err != nil {
		log.Fatalf("%sset failed: %v", agent.ErrorLogPrefix, statusJSON(bp))
	}
	log.Printf("breakpoint %v set at %s:%d", bp.ID, *path, *line)

	waitDone := make(chan error, 1)
	if err := facade.Wait(bp, func(err error) { waitDone <- err }); err != nil {
		log.Fatalf("%swait failed: %v", agent.ErrorLogPrefix, err)
	}

	fmt.Println("type: hit <path> <line>  |  clear  |  quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "hit":
			if len(fields) != 3 {
				fmt.Println("usage: hit <path> <line>")
				continue
			}
			l, err := strconv.Atoi(fields[2])
			if err != nil || hook.dispatch == nil {
				fmt.Println("bad line or hook not attached")
				continue
			}
			hook.dispatch(agent.BreakEvent{
				Path: fields[1],
				Line: int32(l),
				Frames: []agent.Frame{{
					Function: "main",
					Location: agent.SourceLocation{Path: fields[1], Line: int32(l)},
				}},
			})
		case "clear":
			facade.Clear(bp)
			fmt.Println("cleared")
		case "quit":
			for _, d := range sink.Delivered() {
				fmt.Println(statusJSON(d))
			}
			return
		}
	}
}

func statusJSON(bp *agent.Breakpoint) string {
	b, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return fmt.Sprintf("<encode error: %v>", err)
	}
	return string(b)
}
