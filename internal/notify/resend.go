// Package notify emails import summaries to the clinic through Resend.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/JonMunkholm/barkbook/internal/core"
)

// maxListedErrors caps how many row errors an email repeats.
const maxListedErrors = 20

// emailSender is the part of the Resend client the notifier uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// md drops raw HTML from its input (WithUnsafe is not set).
var md = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// ImportNotifier sends a summary email after every real import.
type ImportNotifier struct {
	emails emailSender
	from   string
	to     []string
}

// NewImportNotifier returns a notifier, or an error when apiKey, from or to is missing.
func NewImportNotifier(apiKey, from string, to []string) (*ImportNotifier, error) {
	if apiKey == "" || from == "" || len(to) == 0 {
		return nil, errors.New("notify: api key, sender and at least one recipient are required")
	}
	return &ImportNotifier{
		emails: resend.NewClient(apiKey).Emails,
		from:   from,
		to:     to,
	}, nil
}

func (n *ImportNotifier) NotifyImport(ctx context.Context, run *core.ImportRun) error {
	html, err := RenderSummary(run)
	if err != nil {
		return err
	}

	sent, err := n.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: Subject(run),
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send import summary: %w", err)
	}
	slog.Info("import summary sent", "run_id", run.ID, "message_id", sent.Id)
	return nil
}

// Subject is the email subject line for a run.
func Subject(run *core.ImportRun) string {
	r := run.Result
	if len(r.Errors) > 0 {
		return fmt.Sprintf("BarkBook import finished with %d errors", len(r.Errors))
	}
	return fmt.Sprintf("BarkBook import: %d clients, %d pets added", r.ClientsCreated, r.PetsCreated)
}

// RenderSummary renders the run as HTML via markdown.
func RenderSummary(run *core.ImportRun) (string, error) {
	var src strings.Builder
	r := run.Result

	fmt.Fprintf(&src, "# Import %s\n\n", run.Status)
	if run.FileName != "" {
		fmt.Fprintf(&src, "File: %s\n\n", escapeMarkdown(run.FileName))
	}
	fmt.Fprintf(&src, "| Rows | Clients added | Pets added | Skipped | Errors |\n")
	fmt.Fprintf(&src, "|---|---|---|---|---|\n")
	fmt.Fprintf(&src, "| %d | %d | %d | %d | %d |\n\n", r.TotalRows, r.ClientsCreated, r.PetsCreated, r.Skipped, len(r.Errors))

	if len(r.Errors) > 0 {
		src.WriteString("## Errors\n\n")
		for i, e := range r.Errors {
			if i == maxListedErrors {
				fmt.Fprintf(&src, "- ...and %d more\n", len(r.Errors)-maxListedErrors)
				break
			}
			fmt.Fprintf(&src, "- %s\n", escapeMarkdown(e))
		}
		src.WriteString("\n")
	}
	if run.PreviousRunID != "" {
		src.WriteString("This file was imported before; existing clients and pets were left unchanged.\n")
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(src.String()), &buf); err != nil {
		return "", fmt.Errorf("render import summary: %w", err)
	}
	return buf.String(), nil
}

// markdownEscaper backslash-escapes the ASCII punctuation CommonMark gives
// meaning to. Row errors and file names quote customer data verbatim.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "{", `\{`, "}", `\}`,
	"[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`, "<", `\<`, ">", `\>`,
	"#", `\#`, "+", `\+`, "-", `\-`, ".", `\.`, "!", `\!`, "|", `\|`,
	"~", `\~`, "&", `\&`, "\r", " ", "\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
