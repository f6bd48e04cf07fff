//go:build docs

package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/tufeigunchu/captrace/internal/settings"
	"github.com/tufeigunchu/captrace/pkg/cmd"
	"github.com/tufeigunchu/captrace/pkg/cmd/options"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra/doc"
)

const (
	docsDir            = "docs"
	fileTemplateHeader = `` // Use it for headers like YAML frontmatters.
)

var (
	filePrepender = func(filename string) string {
		if fileTemplateHeader == "" {
			return ""
		}
		title := strings.TrimPrefix(
			strings.TrimSuffix(strings.ReplaceAll(filename, "_", " "), ".md"),
			fmt.Sprintf("%s/", docsDir),
		)
		return fmt.Sprintf(fileTemplateHeader, title)
	}
	linkHandler = func(filename string) string {
		if filename == settings.CmdName+".md" {
			// This is the root command.
			return "README.md"
		}
		// Otherwise prefix with docs/.
		return path.Join("docs", filename)
	}
)

func main() {
	// Generate CLI docs
	if err := doc.GenMarkdownTreeCustom(
		cmd.NewRootCmd(
			options.NewCommonOptions(
				options.WithLogger(log.New(os.Stderr).Level(log.InfoLevel)),
			),
		),
		docsDir,
		filePrepender,
		linkHandler,
	); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
