package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string) (OutputFormat, error) {
	out := parseOutputFormat(flagValue)
	if out == "" {
		return "", fmt.Errorf("invalid --output %q (expected table|json)", flagValue)
	}
	return out, nil
}

func marshalJSONLine(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

func formatTemplateList(templates []*template.PromptTemplate, format OutputFormat) string {
	if format == FormatJSON {
		return marshalJSONLine(templates)
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tDOC_TYPE\tVER\tSTATUS\tNAME\tLAST_TEST")
	for _, tpl := range templates {
		lastTest := string(tpl.LastTestStatus)
		if lastTest == "" {
			lastTest = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			tpl.ID, tpl.ServiceCode, tpl.DocType, tpl.Version, tpl.Status, tpl.Name, lastTest)
	}
	_ = tw.Flush()
	return buf.String()
}

func formatTemplateDetail(tpl *template.PromptTemplate, result *template.TestResult, format OutputFormat) string {
	if format == FormatJSON {
		return marshalJSONLine(map[string]any{
			"template":         tpl,
			"last_test_result": result,
		})
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Template: %s\n", tpl.ID)
	fmt.Fprintf(&buf, "Key: %s/%s version %d\n", tpl.ServiceCode, tpl.DocType, tpl.Version)
	fmt.Fprintf(&buf, "Name: %s\n", tpl.Name)
	fmt.Fprintf(&buf, "Status: %s\n", tpl.Status)
	if tpl.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", tpl.Description)
	}
	fmt.Fprintf(&buf, "Temperature: %.2f  MaxTokens: %d\n", tpl.Temperature, tpl.MaxTokens)
	if tpl.ParentID != "" {
		fmt.Fprintf(&buf, "Forked from: %s (version %d)\n", tpl.ParentID, tpl.ParentVersion)
	}
	fmt.Fprintf(&buf, "Created: %s by %s\n", formatTime(tpl.CreatedAt), tpl.CreatedBy)
	if tpl.ActivatedAt != nil {
		fmt.Fprintf(&buf, "Activated: %s by %s\n", formatTime(*tpl.ActivatedAt), tpl.ActivatedBy)
	}

	if result == nil {
		fmt.Fprintln(&buf, "Last test: none")
		return buf.String()
	}
	fmt.Fprintf(&buf, "Last test: %s at %s (%dms)\n", result.Status, formatTime(result.CreatedAt), result.ExecutionTimeMs)
	for _, msg := range result.SchemaValidationErrors {
		fmt.Fprintf(&buf, "  schema: %s\n", msg)
	}
	if result.Error != "" {
		fmt.Fprintf(&buf, "  error: %s\n", result.Error)
	}
	return buf.String()
}

func formatAuditList(entries []*template.AuditEntry, format OutputFormat) string {
	if format == FormatJSON {
		return marshalJSONLine(entries)
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tTEMPLATE\tVER\tBY\tSUMMARY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			formatTime(e.PerformedAt), e.Action, e.TemplateID, e.Version, e.PerformedBy, e.ChangesSummary)
	}
	_ = tw.Flush()
	return buf.String()
}

func formatStats(stats *store.Stats, format OutputFormat) string {
	if format == FormatJSON {
		return marshalJSONLine(stats)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Templates: %d across %d keys\n", stats.Total, stats.LogicalKeys)
	fmt.Fprintf(&buf, "Tests in last 24h: %d\n", stats.TestsLast24h)
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOUNT")
	for _, status := range []template.Status{
		template.StatusDraft,
		template.StatusTested,
		template.StatusActive,
		template.StatusDeprecated,
		template.StatusArchived,
	} {
		if n := stats.ByStatus[status]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", status, n)
		}
	}
	_ = tw.Flush()
	return buf.String()
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
