package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docvault/internal/app"
	"docvault/internal/config"
	"docvault/internal/docvault"
	"docvault/internal/model"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "add", "process").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// unwrap converts a result envelope into the (value, error) shape command
// bodies work with.
func unwrap[T any](res docvault.Result[T]) (T, error) {
	if !res.OK {
		var zero T
		return zero, fmt.Errorf("%s", res.Err)
	}
	return res.Data, nil
}

// promptPassword reads a passphrase from the terminal without echo.
func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return pw, nil
}

// promptNewPassword prompts twice and requires both entries to match.
func promptNewPassword() ([]byte, error) {
	pw, err := promptPassword("Passphrase: ")
	if err != nil {
		return nil, err
	}
	again, err := promptPassword("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pw, again) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// summarize renders a one-column digest of a processing result.
func summarize(r *model.ProcessingResult) string {
	if r.Error != "" {
		return r.Error
	}
	switch d := r.Data.(type) {
	case *model.OCRData:
		return fmt.Sprintf("%d words", len(d.Words))
	case *model.ClassificationData:
		return d.Category
	case *model.ExtractionData:
		return fmt.Sprintf("%d fields", len(d.Fields))
	default:
		return ""
	}
}

func printResults(results []*model.ProcessingResult) {
	for _, r := range results {
		fmt.Printf("%-26s  %-14s  %-7s  %3.0f%%  %6dms  %s\n",
			r.ID, r.ProcessingType, r.Status, r.Confidence*100, r.DurationMS, summarize(r))
	}
}

var rootCmd = &cobra.Command{
	Use:   "docvault",
	Short: "Encrypted local document vault",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = os.Getenv("USER")
		}

		cfg := config.NewConfig(user, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("User:     %s\n", user)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("User:       %s\n", cfg.User)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s (%s)\n", cfg.Store.Type, cfg.Store.DataDir)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("OCR:        %s\n", cfg.Analysis.OCR)
		fmt.Printf("Classifier: %s\n", cfg.Analysis.Classifier)
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Encrypt and store a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		contentType, _ := cmd.Flags().GetString("type")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		if name == "" {
			name = filepath.Base(args[0])
		}

		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		a, err := newApp("add")
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.Pipeline().Ingest(name, contentType, content, password, tags)
		if err != nil {
			return err
		}
		fmt.Printf("Stored %s (%d bytes) as %s\n", doc.Name, doc.Size, doc.ID)
		return nil
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Decrypt a document to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		password, err := promptPassword("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp("get")
		if err != nil {
			return err
		}
		defer a.Close()

		_, plaintext, err := a.Pipeline().Open(args[0], password)
		if err != nil {
			return err
		}

		if output == "" {
			_, err := os.Stdout.Write(plaintext)
			return err
		}
		if err := os.WriteFile(output, plaintext, 0600); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(plaintext), output)
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info ID",
	Short: "View document metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("info")
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := unwrap(a.Service().GetDocument(args[0]))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document not found: %s", args[0])
		}

		fmt.Printf("ID:        %s\n", doc.ID)
		fmt.Printf("Name:      %s\n", doc.Name)
		fmt.Printf("Type:      %s\n", doc.ContentType)
		fmt.Printf("Size:      %d bytes\n", doc.Size)
		fmt.Printf("Hash:      %s\n", doc.Hash)
		fmt.Printf("Created:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Modified:  %s\n", doc.ModifiedAt.Format("2006-01-02 15:04:05"))
		if doc.Metadata.PageCount > 0 {
			fmt.Printf("Pages:     %d\n", doc.Metadata.PageCount)
		}
		if doc.Metadata.Width > 0 {
			fmt.Printf("Pixels:    %dx%d\n", doc.Metadata.Width, doc.Metadata.Height)
		}
		if len(doc.Metadata.Tags) > 0 {
			fmt.Printf("Tags:      %v\n", doc.Metadata.Tags)
		}
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		contentType, _ := cmd.Flags().GetString("type")
		index, _ := cmd.Flags().GetString("index")
		sortBy, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := newApp("list")
		if err != nil {
			return err
		}
		defer a.Close()

		page := docvault.Page{Offset: offset, Limit: limit}
		var docs []*model.Document
		if contentType != "" {
			docs, err = unwrap(a.Service().DocumentsByType(contentType, page))
		} else {
			q := docvault.DocumentQuery{
				Index:  docvault.DocumentIndex(index),
				SortBy: docvault.DocumentSortField(sortBy),
				Page:   page,
			}
			if desc {
				q.Direction = docvault.Descending
			}
			docs, err = unwrap(a.Service().ListDocuments(q))
		}
		if err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%-36s  %-25s  %-20s  %10d  %s\n",
				d.ID, truncate(d.Name, 25), truncate(d.ContentType, 20), d.Size,
				d.ModifiedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// update command
var updateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Rename or retag a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		if name == "" && len(tags) == 0 {
			return fmt.Errorf("nothing to update: pass --name or --tag")
		}

		a, err := newApp("update")
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := unwrap(a.Service().GetDocument(args[0]))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("document not found: %s", args[0])
		}

		if name != "" {
			doc.Name = name
		}
		if len(tags) > 0 {
			doc.Metadata.Tags = tags
		}
		if _, err := unwrap(a.Service().UpdateDocument(doc)); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", doc.ID)
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("rm")
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.Service().DeleteDocument(args[0])
		if !res.OK {
			return fmt.Errorf("%s", res.Err)
		}
		if res.Meta.RecordsAffected == 0 {
			fmt.Println("Nothing to delete.")
			return nil
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// template command
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage processing templates",
}

var templateImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a template definition from JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		tpl, err := docvault.ParseTemplateDefinition(raw)
		if err != nil {
			return err
		}
		tpl.ID = uuid.New().String()
		now := time.Now().UTC()
		tpl.CreatedAt = now
		tpl.ModifiedAt = now

		a, err := newApp("template-import")
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := unwrap(a.Service().AddTemplate(tpl)); err != nil {
			return err
		}
		fmt.Printf("Imported template %s as %s\n", tpl.Name, tpl.ID)
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp("template-list")
		if err != nil {
			return err
		}
		defer a.Close()

		var templates []*model.DocumentTemplate
		if all {
			templates, err = unwrap(a.Service().Templates(docvault.Page{}))
		} else {
			templates, err = unwrap(a.Service().ActiveTemplates(docvault.Page{}))
		}
		if err != nil {
			return err
		}

		if len(templates) == 0 {
			fmt.Println("No templates.")
			return nil
		}
		for _, t := range templates {
			state := "active"
			if !t.IsActive {
				state = "inactive"
			}
			fmt.Printf("%-36s  %-25s  %-15s  v%-3d  %s\n",
				t.ID, truncate(t.Name, 25), truncate(t.DocumentType, 15), t.Version, state)
		}
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View a template definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("template-show")
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := unwrap(a.Service().GetTemplate(args[0]))
		if err != nil {
			return err
		}
		if tpl == nil {
			return fmt.Errorf("template not found: %s", args[0])
		}

		out, err := json.MarshalIndent(tpl, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding template: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

// setTemplateActive flips the active flag and bumps the version.
func setTemplateActive(operation, id string, active bool) error {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer a.Close()

	tpl, err := unwrap(a.Service().GetTemplate(id))
	if err != nil {
		return err
	}
	if tpl == nil {
		return fmt.Errorf("template not found: %s", id)
	}
	if tpl.IsActive == active {
		fmt.Println("No change.")
		return nil
	}

	tpl.IsActive = active
	tpl.Version++
	if _, err := unwrap(a.Service().UpdateTemplate(tpl)); err != nil {
		return err
	}
	fmt.Printf("Template %s is now v%d\n", tpl.ID, tpl.Version)
	return nil
}

var templateEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Mark a template active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTemplateActive("template-enable", args[0], true)
	},
}

var templateDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Mark a template inactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTemplateActive("template-disable", args[0], false)
	},
}

// process command
var processCmd = &cobra.Command{
	Use:   "process ID...",
	Short: "Run a template's processing rules against documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tplID, _ := cmd.Flags().GetString("template")

		password, err := promptPassword("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp("process")
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := unwrap(a.Service().GetTemplate(tplID))
		if err != nil {
			return err
		}
		if tpl == nil {
			return fmt.Errorf("template not found: %s", tplID)
		}

		ctx := context.Background()
		if len(args) == 1 {
			a.Pipeline().Progress = func(pct int) {
				fmt.Fprintf(os.Stderr, "\rrecognizing %3d%%", pct)
			}
			results, err := a.Pipeline().Process(ctx, args[0], tpl, password)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		}

		outcomes, err := a.Pipeline().RunBatch(ctx, args, tpl, password)
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if o.Err != nil {
				fmt.Printf("%-36s  failed: %v\n", o.DocumentID, o.Err)
				continue
			}
			fmt.Printf("%-36s  %d result(s)\n", o.DocumentID, len(o.Results))
		}
		return nil
	},
}

// results command
var resultsCmd = &cobra.Command{
	Use:   "results ID",
	Short: "View processing results for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := newApp("results")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := unwrap(a.Service().ResultsByDocument(args[0], docvault.Page{Offset: offset, Limit: limit}))
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		printResults(results)
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the audit log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		index, _ := cmd.Flags().GetString("index")

		a, err := newApp("audit")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := unwrap(a.Service().AuditEntries(docvault.AuditQuery{
			Index: docvault.AuditIndex(index),
			Page:  docvault.Page{Offset: offset, Limit: limit},
		}))
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-22s  %-18s  %-36s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.ResourceType,
				e.ResourceID, e.Result)
		}
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View storage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("stats")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := unwrap(a.Service().Stats())
		if err != nil {
			return err
		}

		fmt.Printf("Documents:       %d\n", st.Documents)
		fmt.Printf("Results:         %d\n", st.Results)
		fmt.Printf("Templates:       %d\n", st.Templates)
		fmt.Printf("Audit entries:   %d\n", st.AuditEntries)
		fmt.Printf("Total size:      %d bytes\n", st.TotalSize)
		fmt.Printf("Schema version:  %d\n", st.SchemaVersion)
		return nil
	},
}

// clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every record from every collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("refusing to clear without --force")
		}

		a, err := newApp("clear")
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.Service().ClearAll()
		if !res.OK {
			return fmt.Errorf("%s", res.Err)
		}
		fmt.Printf("Removed %d record(s)\n", res.Meta.RecordsAffected)
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export DEST",
	Short: "Export an encrypted snapshot of the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptNewPassword()
		if err != nil {
			return err
		}

		a, err := newApp("export")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ExportSnapshot(args[0], string(passphrase)); err != nil {
			return err
		}
		fmt.Printf("Snapshot written to %s\n", args[0])
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import SRC",
	Short: "Restore the store from an encrypted snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := promptPassword("Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp("import")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ImportSnapshot(args[0], string(passphrase)); err != nil {
			return err
		}
		fmt.Printf("Store restored from %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("user", "", "Identity recorded (hashed) on audit entries")
	configCmd.AddCommand(configListCmd)

	// template subcommands
	templateCmd.AddCommand(templateImportCmd)
	templateCmd.AddCommand(templateListCmd)
	templateListCmd.Flags().Bool("all", false, "Include inactive templates")
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateEnableCmd)
	templateCmd.AddCommand(templateDisableCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("name", "", "Document name (default: file name)")
	addCmd.Flags().String("type", "", "Content type (default: sniffed)")
	addCmd.Flags().StringSlice("tag", nil, "Tag to attach (repeatable)")
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Write decrypted content to this file")
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("type", "", "Only documents with this exact content type")
	listCmd.Flags().String("index", "", "Order by index: type, created, modified, size, name")
	listCmd.Flags().String("sort", "", "Sort field: id, name, type, size, created, modified")
	listCmd.Flags().Bool("desc", false, "Sort descending")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of documents to show")
	listCmd.Flags().Int("offset", 0, "Number of documents to skip")
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().String("name", "", "New document name")
	updateCmd.Flags().StringSlice("tag", nil, "Replacement tags (repeatable)")
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringP("template", "t", "", "Template to apply")
	processCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().IntP("limit", "n", 0, "Maximum number of results to show")
	resultsCmd.Flags().Int("offset", 0, "Number of results to skip")
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	auditCmd.Flags().Int("offset", 0, "Number of entries to skip")
	auditCmd.Flags().String("index", "", "Query index: timestamp, user, action, resource_type, result")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().Bool("force", false, "Actually clear all collections")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
