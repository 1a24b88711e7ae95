// cmd/server/commands.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Corphon/CampaignStudio/internal/app"
	"github.com/Corphon/CampaignStudio/internal/models"
	"github.com/Corphon/CampaignStudio/internal/services"
)

const bundlesDir = "bundles"

var (
	briefFile  string
	tone       string
	saveAs     string
	fromBundle string
	exportAll  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a full content bundle from a brief",
	Long: `Generates every artifact for the brief and saves the bundle under the data
directory so preview, export and copy can reuse it with --from.

Example:
  campaign-studio generate --brief launch.yaml --tone friendly --save launch`,
	RunE: runGenerate,
}

var previewCmd = &cobra.Command{
	Use:   "preview <ebook|social|email|sdr> [index]",
	Short: "Render one artifact in the terminal",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPreview,
}

var exportCmd = &cobra.Command{
	Use:   "export [kind] [index]",
	Short: "Write an artifact, or the whole bundle with --all, to the export directory",
	Long: `Kinds: ebook, socialPlatform, socialAll, email, emailAll, sdrEmail, sdrAll.
socialPlatform, email and sdrEmail need an index.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runExport,
}

var copyCmd = &cobra.Command{
	Use:   "copy <kind> [index]",
	Short: "Copy an artifact to the system clipboard",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCopy,
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, previewCmd, exportCmd, copyCmd} {
		c.Flags().StringVarP(&briefFile, "brief", "b", "", "Campaign brief (YAML or JSON)")
		c.Flags().StringVarP(&tone, "tone", "t", "", "Tone of voice")
	}
	for _, c := range []*cobra.Command{previewCmd, exportCmd, copyCmd} {
		c.Flags().StringVar(&fromBundle, "from", "", "Reuse a bundle saved by generate instead of generating")
	}
	generateCmd.Flags().StringVar(&saveAs, "save", "", "Name of the saved bundle (defaults to the campaign name)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export the whole bundle as one markdown document")
}

// loadBrief reads a descriptor from path. An empty path yields an empty
// descriptor, which generation fills from the example campaign.
func loadBrief(path string) (models.CampaignDescriptor, error) {
	var d models.CampaignDescriptor
	if path == "" {
		return d, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read brief: %w", err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("parse brief %s: %w", path, err)
	}
	return d, nil
}

// openSession wires the application for a single terminal run and returns a
// session that already holds a bundle.
func openSession(cmd *cobra.Command) (*app.App, *services.CampaignSession, error) {
	descriptor, err := loadBrief(briefFile)
	if err != nil {
		return nil, nil, err
	}
	if !verbose {
		cfg.LogLevel = "warn"
	}

	out := cmd.OutOrStdout()
	a, err := app.New(cfg, app.WithNotifierFactory(func(string) services.NotificationSink {
		return terminalNotifier(out)
	}))
	if err != nil {
		return nil, nil, err
	}
	s := a.Sessions.Create(descriptor, tone)

	if fromBundle != "" {
		var b models.ContentBundle
		if err := a.Data.LoadJSONFile(bundlesDir, bundleFile(fromBundle), &b); err != nil {
			return nil, nil, fmt.Errorf("load bundle %q: %w", fromBundle, err)
		}
		s.Restore(b)
		return a, s, nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// a failed generation still leaves the sample bundle in place
	if _, err := s.GenerateAll(ctx); err != nil {
		a.Logger.Debug("generation fell back to sample content", map[string]interface{}{"error": err.Error()})
	}
	return a, s, nil
}

func bundleFile(name string) string {
	name = strings.TrimSuffix(name, ".json")
	return name + ".json"
}

func runGenerate(cmd *cobra.Command, args []string) error {
	fromBundle = ""
	a, s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Logger.Sync()

	state := s.State()
	if state.Bundle == nil {
		return fmt.Errorf("no bundle was produced")
	}

	name := saveAs
	if name == "" {
		name = s.Descriptor().Name
	}
	if name == "" {
		name = "campaign"
	}
	file := bundleFile(slugName(name))
	if err := a.Data.SaveJSONFile(bundlesDir, file, state.Bundle); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(state.Bundle.Ebook.Title))
	fmt.Fprintln(out, summarize(state.Bundle))
	fmt.Fprintln(out, mutedStyle.Render("saved as "+strings.TrimSuffix(file, ".json")))
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	kind, err := services.ParsePreviewKind(args[0])
	if err != nil {
		return err
	}
	index, err := optionalIndex(args, 1)
	if err != nil {
		return err
	}

	a, s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Logger.Sync()

	if err := s.OpenPreview(services.Selection{Kind: kind, Index: index}); err != nil {
		return err
	}
	view, err := s.RenderPreview()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(view.Markdown()))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if !exportAll && len(args) == 0 {
		return fmt.Errorf("name a kind to export, or pass --all")
	}

	var (
		kind  models.ExportKind
		index int
		err   error
	)
	if !exportAll {
		if kind, index, err = exportTarget(args); err != nil {
			return err
		}
	}

	a, s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Logger.Sync()

	var payload *models.ExportPayload
	if exportAll {
		payload, err = s.ExportBundle(s.Descriptor().Name)
	} else {
		payload, err = s.Export(kind, index)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("%s/%s (%d bytes)", a.Config.ExportDir, payload.Filename, payload.Size())))
	return nil
}

func runCopy(cmd *cobra.Command, args []string) error {
	kind, index, err := exportTarget(args)
	if err != nil {
		return err
	}

	a, s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer a.Logger.Sync()

	_, err = s.Copy(systemClipboard{}, kind, index)
	return err
}

func exportTarget(args []string) (models.ExportKind, int, error) {
	kind, err := models.ParseExportKind(args[0])
	if err != nil {
		return "", 0, err
	}
	if kind.Indexed() && len(args) < 2 {
		return "", 0, fmt.Errorf("%s needs an index", kind)
	}
	index, err := optionalIndex(args, 1)
	return kind, index, err
}

func optionalIndex(args []string, pos int) (int, error) {
	if len(args) <= pos {
		return 0, nil
	}
	n, err := strconv.Atoi(args[pos])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("index must be a non-negative integer, got %q", args[pos])
	}
	return n, nil
}

func slugName(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
