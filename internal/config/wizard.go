package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/harun/mcplink/pkg/agent"
)

// Wizard asks for the client settings interactively
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run prompts for each client setting, starting from base. Empty answers keep the current value.
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := *base
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== mcplink configuration ===")
	fmt.Fprintln(w.out)

	fmt.Fprintln(w.out, "Variants:")
	for _, v := range agent.DefaultVariants() {
		info := v.Info()
		fmt.Fprintf(w.out, "  %-12s %s\n", v.ID, info.Description)
	}

	for {
		variant, err := w.ask("Variant", cfg.Client.Variant)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateVariant(variant); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Client.Variant = variant
		break
	}

	for {
		key, err := w.ask("API key (Enter to keep)", "")
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		if err := validator.ValidateAPIKey(key); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Client.APIKey = key
		break
	}

	model, err := w.ask("Model (Enter for the variant default)", cfg.Client.Model)
	if err != nil {
		return nil, err
	}
	cfg.Client.Model = model

	for {
		mcpURL, err := w.ask("Tool server URL", cfg.Client.MCPURL)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateURL("tool server URL", mcpURL, false); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Client.MCPURL = mcpURL
		break
	}

	history, err := w.askBool("Send earlier turns with each command", cfg.Client.UseHistory)
	if err != nil {
		return nil, err
	}
	cfg.Client.UseHistory = history

	return &cfg, nil
}

func (w *Wizard) ask(prompt, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, current)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}
	line, err := w.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return current, nil
	}
	return line, nil
}

func (w *Wizard) askBool(prompt string, current bool) (bool, error) {
	def := "y/N"
	if current {
		def = "Y/n"
	}
	for {
		fmt.Fprintf(w.out, "%s? [%s]: ", prompt, def)
		line, err := w.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return current, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(w.out, "Please answer y or n")
	}
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
