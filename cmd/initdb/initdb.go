// Package initdb handles database initialization commands
package initdb

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tally/cmd/root"
	"tally/internal/models"
	"tally/internal/store"
)

// Cmd represents the initdb command
var Cmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the ledger database",
	Long: `Create the ledger database and bring its schema up to date.
Running initdb on an existing database applies any pending migrations and
leaves the data untouched. With --seed, categories and categorization rules
are imported from a YAML file.`,
	RunE: initdbFunc,
}

var seedFile string

func init() {
	Cmd.Flags().StringVar(&seedFile, "seed", "", "YAML file with categories and auto-rules to import")
}

// seedSpec is the layout of a --seed file.
type seedSpec struct {
	Categories []string `yaml:"categories"`
	Allocate   []struct {
		Description string `yaml:"description"`
		Category    string `yaml:"category"`
	} `yaml:"allocate"`
	Ignore []string `yaml:"ignore"`
}

func initdbFunc(cmd *cobra.Command, args []string) error {
	path := root.DatabasePath()
	existed := store.Exists(path)

	s, err := store.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()

	if existed {
		root.Log.WithField("database", path).Info("Database already initialized, schema is up to date")
	} else {
		root.Log.WithField("database", path).Info("Database created")
	}

	if seedFile == "" {
		return nil
	}
	return seed(cmd, s, seedFile)
}

// seed imports categories and auto-rules from a YAML file. Imports are
// upserts, so re-seeding is safe.
func seed(cmd *cobra.Command, s *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var spec seedSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	ctx := cmd.Context()
	err = s.WithTx(ctx, func(q *store.Queries) error {
		for _, name := range spec.Categories {
			if err := q.CreateCategory(ctx, name); err != nil {
				return err
			}
		}
		for _, rule := range spec.Allocate {
			if rule.Description == "" || rule.Category == "" {
				return fmt.Errorf("allocate rule needs both description and category")
			}
			if err := q.CreateCategory(ctx, rule.Category); err != nil {
				return err
			}
			norm := models.NormalizeDescription(rule.Description)
			if err := q.UpsertAllocateRule(ctx, norm, rule.Category); err != nil {
				return err
			}
		}
		for _, description := range spec.Ignore {
			if description == "" {
				return fmt.Errorf("ignore rule needs a description")
			}
			if err := q.UpsertIgnoreRule(ctx, models.NormalizeDescription(description)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	root.Log.WithFields(map[string]interface{}{
		"categories": len(spec.Categories),
		"allocate":   len(spec.Allocate),
		"ignore":     len(spec.Ignore),
	}).Info("Seed file imported")
	return nil
}
