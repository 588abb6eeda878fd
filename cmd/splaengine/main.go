// cmd/splaengine/main.go
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"splax"
	"splax/internal/descriptor"
	"splax/internal/dispatch"
	"splax/internal/primitives"
	"splax/internal/schedule"
	"splax/internal/storage"
	"splax/internal/telemetry"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	switch cmd {
	case "--help", "-h", "help":
		if len(args) > 1 {
			showCommandHelp(args[1])
		} else {
			showUsage()
		}
	case "--version", "-v", "version":
		fmt.Printf("splaengine %s\n", version)
	case "run":
		runSchedule(args[1:])
	case "serve":
		serveTelemetry(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("splaengine - sparse linear-algebra execution engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  splaengine run <schedule.json> [--cache path.db] [--workers N] [--telemetry addr]")
	fmt.Println("  splaengine serve --addr :8900 [--cache path.db]")
	fmt.Println("  splaengine version")
	fmt.Println("  splaengine help [command]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  splaengine run testdata/vxm.json")
	fmt.Println("  splaengine run testdata/vxm.json --cache /var/lib/splaengine/cache.db --workers 4")
}

func showCommandHelp(command string) {
	help := map[string]string{
		"run": `splaengine run - submit a schedule described by a JSON file

USAGE:
  splaengine run <schedule.json> [options]

OPTIONS:
  --cache <path>       open (or create) a persistent SQLite program cache
  --workers <N>        bound in-step task concurrency (default: GOMAXPROCS)
  --telemetry <addr>   also broadcast schedule lifecycle events over a
                       websocket server listening on addr while this run
                       executes

Each task's output, once the schedule completes, is printed as one JSON
line per task to stdout.`,
		"serve": `splaengine serve - run a long-lived engine with a telemetry endpoint

USAGE:
  splaengine serve --addr :8900 [--cache path.db]

DESCRIPTION:
  Starts an HTTP server exposing /telemetry as a websocket stream of
  schedule lifecycle events. Intended for attaching a dashboard while
  schedules are submitted through a future request API or embedded
  caller.`,
	}
	if text, ok := help[command]; ok {
		fmt.Println(text)
		return
	}
	fmt.Printf("No detailed help available for %q\n", command)
}

// operandJSON is the wire shape of one storage.COO operand in a
// schedule file: rows/cols/nrows/ncols are required, vals is omitted
// for a pattern-only operand.
type operandJSON struct {
	Rows  []uint32  `json:"rows"`
	Cols  []uint32  `json:"cols,omitempty"`
	Vals  []float64 `json:"vals,omitempty"`
	NRows uint32    `json:"nrows"`
	NCols uint32    `json:"ncols"`
}

func (o *operandJSON) toCOO(typ descriptor.Type) (*storage.COO, error) {
	if o == nil {
		return nil, nil
	}
	coo := &storage.COO{Rows: o.Rows, Cols: o.Cols, Type: typ, NRows: o.NRows, NCols: o.NCols}
	if o.Vals != nil {
		packed, err := primitives.Pack(typ, o.Vals)
		if err != nil {
			return nil, fmt.Errorf("pack operand values: %w", err)
		}
		coo.Vals = packed
	}
	return coo, nil
}

type taskJSON struct {
	Op             string       `json:"op"`
	Type           string       `json:"type"`
	Add            string       `json:"add,omitempty"`
	Mult           string       `json:"mult,omitempty"`
	A              *operandJSON `json:"a,omitempty"`
	B              *operandJSON `json:"b,omitempty"`
	Mask           *operandJSON `json:"mask,omitempty"`
	Complement     bool         `json:"complement,omitempty"`
	DeviceResident bool         `json:"deviceResident,omitempty"`
}

type scheduleJSON struct {
	Label string       `json:"label"`
	Steps [][]taskJSON `json:"steps"`
}

func runSchedule(args []string) {
	if len(args) == 0 {
		log.Fatal("run requires a schedule file")
	}
	path := args[0]
	cachePath, workers, telemetryAddr := parseRunFlags(args[1:])

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("could not read schedule file: %v", err)
	}

	var doc scheduleJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Fatalf("could not parse schedule file: %v", err)
	}

	var bcast *telemetry.Broadcaster
	if telemetryAddr != "" {
		bcast = telemetry.NewBroadcaster()
		mux := http.NewServeMux()
		mux.HandleFunc("/telemetry", bcast.ServeHTTP)
		go func() {
			if err := http.ListenAndServe(telemetryAddr, mux); err != nil {
				log.Printf("telemetry server stopped: %v", err)
			}
		}()
		fmt.Printf("telemetry: ws://%s/telemetry\n", telemetryAddr)
	}

	engine, err := splax.New(splax.Options{CachePath: cachePath, Workers: workers, Telemetry: bcast})
	if err != nil {
		log.Fatalf("could not start engine: %v", err)
	}
	defer engine.Close()

	sched := schedule.New(doc.Label)
	tasksByStep, err := buildTasks(doc)
	if err != nil {
		log.Fatalf("could not build schedule: %v", err)
	}
	for _, tasks := range tasksByStep {
		sched.AddStep(tasks...)
	}

	if err := engine.Submit(sched); err != nil {
		log.Fatalf("schedule failed: %v", err)
	}

	for _, tasks := range tasksByStep {
		for _, task := range tasks {
			printTaskResult(task)
		}
	}
}

func buildTasks(doc scheduleJSON) ([][]*dispatch.Task, error) {
	types := make(map[string]descriptor.Type)
	for _, t := range descriptor.BuiltinTypes() {
		types[t.Code] = t
	}
	ops := make(map[string]descriptor.Op)
	for _, op := range descriptor.BuiltinOps() {
		ops[op.Key] = op
	}

	var result [][]*dispatch.Task
	for _, step := range doc.Steps {
		var tasks []*dispatch.Task
		for _, tj := range step {
			typ, ok := types[strings.ToUpper(tj.Type)]
			if !ok {
				return nil, fmt.Errorf("unknown type %q", tj.Type)
			}

			a, err := tj.A.toCOO(typ)
			if err != nil {
				return nil, err
			}
			b, err := tj.B.toCOO(typ)
			if err != nil {
				return nil, err
			}
			mask, err := tj.Mask.toCOO(typ)
			if err != nil {
				return nil, err
			}

			task := &dispatch.Task{
				ID:             uuid.New(),
				Operation:      tj.Op,
				A:              a,
				B:              b,
				Mask:           mask,
				Complement:     tj.Complement,
				Type:           typ,
				DeviceResident: tj.DeviceResident,
			}
			if tj.Add != "" {
				op, ok := ops[tj.Add]
				if !ok {
					return nil, fmt.Errorf("unknown operator %q", tj.Add)
				}
				task.Add = &op
			}
			if tj.Mult != "" {
				op, ok := ops[tj.Mult]
				if !ok {
					return nil, fmt.Errorf("unknown operator %q", tj.Mult)
				}
				task.Mult = &op
			}
			tasks = append(tasks, task)
		}
		result = append(result, tasks)
	}
	return result, nil
}

func printTaskResult(task *dispatch.Task) {
	if task.Status != nil {
		fmt.Printf(`{"task":%q,"op":%q,"error":%q}`+"\n", task.ID, task.Operation, task.Status.Error())
		return
	}
	out := task.Output
	if out == nil {
		fmt.Printf(`{"task":%q,"op":%q,"rows":[],"vals":null}`+"\n", task.ID, task.Operation)
		return
	}

	var vals []float64
	if out.HasValues() {
		v, err := primitives.Unpack(out.Type, out.Vals)
		if err != nil {
			fmt.Printf(`{"task":%q,"op":%q,"error":%q}`+"\n", task.ID, task.Operation, err.Error())
			return
		}
		vals = v
	}

	payload := struct {
		Task  string    `json:"task"`
		Op    string    `json:"op"`
		Rows  []uint32  `json:"rows"`
		Cols  []uint32  `json:"cols,omitempty"`
		Vals  []float64 `json:"vals,omitempty"`
		NRows uint32    `json:"nrows"`
		NCols uint32    `json:"ncols"`
	}{
		Task: task.ID.String(), Op: task.Operation,
		Rows: out.Rows, Cols: out.Cols, Vals: vals,
		NRows: out.NRows, NCols: out.NCols,
	}
	line, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("could not marshal task result: %v", err)
	}
	fmt.Println(string(line))
}

func parseRunFlags(args []string) (cachePath string, workers int, telemetryAddr string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--cache":
			if i+1 < len(args) {
				cachePath = args[i+1]
				i++
			}
		case "--workers":
			if i+1 < len(args) {
				n, err := strconv.Atoi(args[i+1])
				if err != nil {
					log.Fatalf("invalid --workers value %q: %v", args[i+1], err)
				}
				workers = n
				i++
			}
		case "--telemetry":
			if i+1 < len(args) {
				telemetryAddr = args[i+1]
				i++
			}
		}
	}
	return
}

func serveTelemetry(args []string) {
	addr := ":8900"
	var cachePath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--addr":
			if i+1 < len(args) {
				addr = args[i+1]
				i++
			}
		case "--cache":
			if i+1 < len(args) {
				cachePath = args[i+1]
				i++
			}
		}
	}

	bcast := telemetry.NewBroadcaster()
	engine, err := splax.New(splax.Options{CachePath: cachePath, Telemetry: bcast})
	if err != nil {
		log.Fatalf("could not start engine: %v", err)
	}
	defer engine.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", bcast.ServeHTTP)

	fmt.Printf("splaengine serving on %s (ws://%s/telemetry)\n", addr, addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
