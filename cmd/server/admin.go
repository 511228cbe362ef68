package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/services"
	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative commands",
	Long:  "Administrative commands for managing device accounts, therapy records and snapshots",
}

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Register a device account",
	Run:   runCreateAccountCommand,
}

var listAccountsCmd = &cobra.Command{
	Use:   "list-accounts",
	Short: "List all device accounts",
	Run:   runListAccountsCommand,
}

var listRecordsCmd = &cobra.Command{
	Use:   "list-records",
	Short: "Search therapy records and print them as a table",
	Run:   runListRecordsCommand,
}

var exportSnapshotCmd = &cobra.Command{
	Use:   "export-snapshot",
	Short: "Write the record snapshot document",
	Run:   runExportSnapshotCommand,
}

var exportXLSXCmd = &cobra.Command{
	Use:   "export-xlsx",
	Short: "Write matching records to an Excel workbook",
	Run:   runExportXLSXCommand,
}

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Post the current snapshot to the configured collector",
	Run:   runForwardCommand,
}

func init() {
	createAccountCmd.Flags().String("serial", "", "Device serial number (required)")
	createAccountCmd.Flags().String("model", "", "Device model number (required)")
	createAccountCmd.Flags().String("type", "", "Device type: CPAP, APAP or BiPAP (required)")
	createAccountCmd.Flags().String("contact", "", "Contact phone number (required)")
	createAccountCmd.Flags().String("password", "", "Account password (required)")
	createAccountCmd.MarkFlagRequired("serial")
	createAccountCmd.MarkFlagRequired("model")
	createAccountCmd.MarkFlagRequired("type")
	createAccountCmd.MarkFlagRequired("contact")
	createAccountCmd.MarkFlagRequired("password")

	for _, c := range []*cobra.Command{listRecordsCmd, exportXLSXCmd} {
		addSearchFlags(c)
	}

	exportSnapshotCmd.Flags().String("out", "", "Output path (defaults to SNAPSHOT_PATH)")
	exportXLSXCmd.Flags().String("out", "records.xlsx", "Output path")

	adminCmd.AddCommand(
		createAccountCmd,
		listAccountsCmd,
		listRecordsCmd,
		exportSnapshotCmd,
		exportXLSXCmd,
		forwardCmd,
	)
}

func addSearchFlags(c *cobra.Command) {
	c.Flags().String("from", "", "Start date, DD/MM/YYYY")
	c.Flags().String("to", "", "End date, DD/MM/YYYY")
	c.Flags().String("sort", "", "Field to sort by, descending")
	c.Flags().StringSlice("columns", nil, "Fields to show (default all)")
	c.Flags().StringToString("filter", nil, "Field substring filters, e.g. --filter mode_name=apap")
}

func searchRequestFromFlags(cmd *cobra.Command) (services.QueryRequest, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	sortBy, _ := cmd.Flags().GetString("sort")
	columnNames, _ := cmd.Flags().GetStringSlice("columns")
	filters, _ := cmd.Flags().GetStringToString("filter")

	columns, err := services.ParseColumns(columnNames)
	if err != nil {
		return services.QueryRequest{}, err
	}
	return services.QueryRequest{
		From:    from,
		To:      to,
		Filters: filters,
		Columns: columns,
		SortBy:  sortBy,
	}, nil
}

func mustApp() *app {
	a, err := newApp(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return a
}

func runCreateAccountCommand(cmd *cobra.Command, args []string) {
	serial, _ := cmd.Flags().GetString("serial")
	model, _ := cmd.Flags().GetString("model")
	deviceType, _ := cmd.Flags().GetString("type")
	contact, _ := cmd.Flags().GetString("contact")
	password, _ := cmd.Flags().GetString("password")

	a := mustApp()
	defer a.Close()

	account, err := a.accounts.CreateAccount(context.Background(), serial, model, deviceType, contact, password)
	if err != nil {
		a.logger.Fatal("failed to create account", zap.Error(err))
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("✓ Account created successfully!")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Serial Number: %s\n", account.SerialNumber)
	fmt.Printf("Model Number: %s\n", account.ModelNumber)
	fmt.Printf("Device Type: %s\n", account.DeviceType)
	fmt.Printf("Registered At: %s\n", account.RegisteredAt.Format("2006-01-02 15:04:05"))
}

func runListAccountsCommand(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.Close()

	accounts, err := a.accounts.ListAccounts(context.Background())
	if err != nil {
		a.logger.Fatal("failed to list accounts", zap.Error(err))
	}
	printAccounts(os.Stdout, accounts)
}

func printAccounts(w io.Writer, accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No accounts registered.")
		return
	}

	fmt.Fprintf(w, "Accounts (%d):\n", len(accounts))
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%-20s %-15s %-8s %-15s %-20s\n", "Serial", "Model", "Type", "Contact", "Registered")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	for _, account := range accounts {
		fmt.Fprintf(w, "%-20s %-15s %-8s %-15s %-20s\n",
			account.SerialNumber,
			account.ModelNumber,
			account.DeviceType,
			account.ContactNumber,
			account.RegisteredAt.Format("2006-01-02 15:04:05"),
		)
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func runListRecordsCommand(cmd *cobra.Command, args []string) {
	req, err := searchRequestFromFlags(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(1)
	}

	a := mustApp()
	defer a.Close()

	result, err := a.records.Search(context.Background(), req)
	if err != nil {
		a.logger.Fatal("failed to search records", zap.Error(err))
	}
	if result.Degraded {
		fmt.Println("Warning: date range ignored, showing all dates")
	}

	header, rows := services.Project(result.Records, req.Columns)
	printTable(os.Stdout, header, rows)
}

// printTable writes rows as tab-aligned columns with a trailing count.
func printTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d record(s)\n", len(rows))
}

func runExportSnapshotCommand(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")

	a := mustApp()
	defer a.Close()

	snap, err := a.snapshots.Export(context.Background())
	if err != nil {
		a.logger.Fatal("failed to export snapshot", zap.Error(err))
	}

	path := a.snapshots.Path()
	if out != "" && out != path {
		if err := utils.WriteFileAtomic(out, snap.Data, 0o644); err != nil {
			a.logger.Fatal("failed to write snapshot", zap.String("path", out), zap.Error(err))
		}
		path = out
	}
	fmt.Printf("✓ Exported %d record(s) to %s\n", snap.Count, path)
}

func runExportXLSXCommand(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")
	req, err := searchRequestFromFlags(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		os.Exit(1)
	}

	a := mustApp()
	defer a.Close()

	result, err := a.records.Search(context.Background(), req)
	if err != nil {
		a.logger.Fatal("failed to search records", zap.Error(err))
	}

	data, err := services.WriteRecordsXLSX(result.Records, req.Columns)
	if err != nil {
		a.logger.Fatal("failed to build workbook", zap.Error(err))
	}
	if err := utils.WriteFileAtomic(out, data, 0o644); err != nil {
		a.logger.Fatal("failed to write workbook", zap.String("path", out), zap.Error(err))
	}
	fmt.Printf("✓ Wrote %d record(s) to %s\n", len(result.Records), out)
}

func runForwardCommand(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.Close()

	if !a.forwarder.Configured() {
		fmt.Fprintln(os.Stderr, "FORWARD_URL is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	snap, err := a.snapshots.Export(ctx)
	if err != nil {
		a.logger.Fatal("failed to export snapshot", zap.Error(err))
	}

	result, err := a.forwarder.Forward(ctx, snap)
	if err != nil {
		a.logger.Fatal("failed to forward snapshot", zap.Error(err))
	}

	fmt.Printf("✓ Forwarded %d record(s), upstream status %d\n", result.RecordsSent, result.StatusCode)
	fmt.Printf("Response: %v\n", result.Response)
}
