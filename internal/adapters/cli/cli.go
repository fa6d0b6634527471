// Package cli is the counter-side command interface: one-shot commands from
// the shell, or the same commands typed into an interactive session.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"parts-engine/internal/app"
)

// ErrUsage marks a malformed command line. The caller prints help.
var ErrUsage = errors.New("usage")

func usage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)
}

// Run executes one command. args[0] is the command name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usage("no command given")
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "receive", "rcv":
		if len(args) < 3 {
			return usage("receive <part> <qty> <unit-cost> [reason]")
		}
		qty, err := parseInt("qty", args[1])
		if err != nil {
			return err
		}
		cost, err := decimal.NewFromString(args[2])
		if err != nil {
			return usage("invalid unit cost %q", args[2])
		}
		layer, err := svc.ReceiveStock(ctx, app.ReceiveStockRequest{
			PartNumber: args[0], Quantity: qty, UnitCost: cost, Reason: strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Received %d x %s @ %s (layer %d)\n",
			layer.QuantityReceived, layer.PartNumber, layer.UnitCost.StringFixed(2), layer.ID)

	case "consume", "use":
		if len(args) < 2 {
			return usage("consume <part> <qty> [job-id]")
		}
		qty, err := parseInt("qty", args[1])
		if err != nil {
			return err
		}
		req := app.ConsumeStockRequest{PartNumber: args[0], Quantity: qty}
		if len(args) > 2 {
			req.JobID = args[2]
		}
		cb, err := svc.ConsumeStock(ctx, req)
		if err != nil {
			return err
		}
		printCostBreakdown(out, cb)

	case "adjust", "adj":
		if len(args) < 3 {
			return usage("adjust <part> <delta> <reason...>")
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return usage("invalid delta %q", args[1])
		}
		res, err := svc.AdjustStock(ctx, app.AdjustStockRequest{
			PartNumber: args[0], Delta: delta, Reason: strings.Join(args[2:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Adjusted %s by %d (requested %d), cost %s\n",
			args[0], res.Applied, res.Requested, res.TotalCost.StringFixed(2))

	case "transfer", "move":
		if len(args) < 3 {
			return usage("transfer <part> <qty> <to-location-id>")
		}
		qty, err := parseInt("qty", args[1])
		if err != nil {
			return err
		}
		to, err := parseInt("location id", args[2])
		if err != nil {
			return err
		}
		if _, err := svc.TransferStock(ctx, app.TransferStockRequest{PartNumber: args[0], Quantity: qty, ToLocationID: to}); err != nil {
			return err
		}
		path, err := svc.LocationPath(ctx, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Moved %s to %s\n", args[0], path)

	case "stock", "s":
		if len(args) < 1 {
			return usage("stock <part>")
		}
		res, err := svc.GetStock(ctx, args[0])
		if err != nil {
			return err
		}
		printStock(out, res)

	case "score":
		if len(args) < 1 {
			return usage("score <part> [--save]")
		}
		get := svc.ScorePart
		if hasFlag(args, "--save") {
			get = svc.RecalculateScore
		}
		sc, err := get(ctx, args[0])
		if err != nil {
			return err
		}
		printScore(out, sc)

	case "plan":
		if len(args) < 1 {
			return usage("plan <part> [--apply]")
		}
		get := svc.RecommendMinStock
		if hasFlag(args, "--apply") {
			get = svc.ApplyMinStock
		}
		plan, err := get(ctx, args[0])
		if err != nil {
			return err
		}
		printPlan(out, plan)

	case "scan", "alerts":
		res, err := svc.ScanAlerts(ctx)
		if err != nil {
			return err
		}
		printAlerts(out, res)

	case "draft":
		res, err := svc.DraftPOsFromAlerts(ctx)
		if err != nil {
			return err
		}
		printDraft(out, res)

	case "recalc":
		res, err := svc.Recalculate(ctx)
		if err != nil {
			return err
		}
		printRecalc(out, res)

	case "overdue-cores", "cores":
		days, err := optionalDays(args)
		if err != nil {
			return err
		}
		res, err := svc.OverdueCores(ctx, days)
		if err != nil {
			return err
		}
		printOverdueCores(out, res)

	case "valuation":
		v, err := svc.InventoryValuation(ctx)
		if err != nil {
			return err
		}
		printValuation(out, v)

	case "export-alerts":
		exp, err := svc.ExportAlerts(ctx)
		if err != nil {
			return err
		}
		return saveExport(out, exp, dirArg(args, 0))

	case "export-cores":
		days, err := optionalDays(args)
		if err != nil {
			return err
		}
		exp, err := svc.ExportOverdueCores(ctx, days)
		if err != nil {
			return err
		}
		return saveExport(out, exp, dirArg(args, 1))

	case "export-valuation":
		exp, err := svc.ExportValuation(ctx)
		if err != nil {
			return err
		}
		return saveExport(out, exp, dirArg(args, 0))

	case "import-prices":
		if len(args) < 2 {
			return usage("import-prices <supplier-code> <file.xlsx>")
		}
		f, err := excelize.OpenFile(args[1])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[1], err)
		}
		defer f.Close()
		res, err := svc.ImportPriceSheet(ctx, args[0], f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported %d prices for %s\n", res.Imported, res.SupplierCode)
		for _, fl := range res.Failures {
			fmt.Fprintf(out, "  %-16s %s\n", fl.PartNumber, fl.Err)
		}

	case "help", "h", "?":
		PrintHelp(out)

	default:
		return usage("unknown command %q", cmd)
	}
	return nil
}

// RunInteractive reads commands line by line until EOF or "exit". Errors are
// printed and the session continues.
func RunInteractive(ctx context.Context, svc app.ApplicationService, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "Parts Engine")
	fmt.Fprintln(out, "Type a command, 'help' for the list, 'exit' to leave.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !sc.Scan() {
			return
		}
		tokens := strings.Fields(sc.Text())
		if len(tokens) == 0 {
			continue
		}
		switch strings.ToLower(tokens[0]) {
		case "exit", "quit":
			return
		}
		if err := Run(ctx, svc, tokens, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func parseInt(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, usage("%s must be a positive integer, got %q", name, s)
	}
	return n, nil
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// optionalDays reads a leading numeric argument; none means the configured default.
func optionalDays(args []string) (*int, error) {
	if len(args) == 0 {
		return nil, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return nil, usage("days must be a non-negative integer, got %q", args[0])
	}
	return &n, nil
}

func dirArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return "."
}

func saveExport(out io.Writer, exp *app.Export, dir string) error {
	defer exp.File.Close()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, exp.Filename)
	if err := exp.File.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}
