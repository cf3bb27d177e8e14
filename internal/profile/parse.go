package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Parse turns one raw profile dump into a Profile. Summary and Execution
// are required sections; Planner is absent from older format versions and
// parses to its zero value. Individual malformed operator blocks or metric
// values never fail the whole parse.
func Parse(text string, logger log.Logger) (*Profile, error) {
	summary, err := ParseSummary(text)
	if err != nil {
		return nil, err
	}

	planner, err := ParsePlanner(text)
	if err != nil {
		var notFound *SectionNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		level.Debug(logger).Log("msg", "profile has no Planner section", "query_id", summary.QueryID)
	}

	execution, err := ParseExecution(text)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Summary:   summary,
		Planner:   planner,
		Execution: execution,
		Fragments: ExtractAllFragments(text),
	}

	if execution.TopologyJSON != "" {
		topo, err := ParseTopologyWithFragments(execution.TopologyJSON, p.Fragments)
		if err != nil {
			return nil, err
		}
		p.Topology = topo
	}

	return p, nil
}

// Resolve reads a profile dump from a file, "-" for stdin, or interactively
// when no input is given, and parses it.
func Resolve(input string, logger log.Logger) (*Profile, error) {
	data, err := readInput(input)
	if err != nil {
		return nil, err
	}

	text := string(data)
	if !strings.Contains(text, "Summary:") {
		return nil, fmt.Errorf("input does not look like a query profile dump: no Summary section")
	}

	return Parse(text, logger)
}

func readInput(input string) ([]byte, error) {
	switch input {
	case "":
		return readInteractive()
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(input)
	}
}

func readInteractive() ([]byte, error) {
	fmt.Print("Paste the query profile dump")
	if runtime.GOOS == "windows" {
		fmt.Print(" (Ctrl+Z, Enter to submit)\n")
	} else {
		fmt.Print(" (Ctrl+D to submit)\n")
	}
	return io.ReadAll(os.Stdin)
}
