package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arxiv-frontend/config"
	"arxiv-frontend/logging"
	"arxiv-frontend/models"
	"arxiv-frontend/services"
	"arxiv-frontend/storage"
)

// opener liefert den TagService und eine Funktion zum Aufräumen.
type opener func() (*services.TagService, func(), error)

func main() {
	if err := newRootCmd(openService).Execute(); err != nil {
		os.Exit(1)
	}
}

func openService() (*services.TagService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.NewCLI(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := storage.Open(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(db); err != nil {
		_ = storage.Close(db)
		return nil, nil, err
	}
	cleanup := func() {
		_ = storage.Close(db)
		_ = log.Sync()
	}
	return services.NewTagService(db, log.Named("tags")), cleanup, nil
}

func newRootCmd(open opener) *cobra.Command {
	var svc *services.TagService
	var cleanup func()

	root := &cobra.Command{
		Use:          "tags",
		Short:        "Manage paper tags and run full-text searches",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			svc, cleanup, err = open()
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if cleanup != nil {
				cleanup()
			}
		},
	}

	var description string
	add := &cobra.Command{
		Use:   "add <arxiv_id> <tag_name> [tag_type]",
		Short: "Attach a tag to a paper",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagType := typeArg(args, 2)
			var desc *string
			if description != "" {
				desc = &description
			}
			if err := svc.AddTag(cmd.Context(), args[0], args[1], tagType, desc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Added tag '%s' to paper %s\n", args[1], args[0])
			return nil
		},
	}
	add.Flags().StringVar(&description, "description", "", "description stored when the tag is created")

	remove := &cobra.Command{
		Use:   "remove <arxiv_id> <tag_name> [tag_type]",
		Short: "Detach a tag from a paper",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc.RemoveTag(cmd.Context(), args[0], args[1], typeArg(args, 2)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed tag '%s' from paper %s\n", args[1], args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list <arxiv_id>",
		Short: "List the tags of a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := svc.PaperTags(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nTags for %s:\n", args[0])
			for _, tag := range tags {
				desc := ""
				if tag.Description != nil {
					desc = *tag.Description
				}
				fmt.Fprintf(out, "  [%s] %s: %s\n", tag.TagType, tag.Name, desc)
			}
			return nil
		},
	}

	var limit int
	search := &cobra.Command{
		Use:   "search <tag_name> [tag_type]",
		Short: "List papers carrying a tag",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tagType models.TagType
			if len(args) > 1 {
				tagType = models.TagType(args[1])
			}
			papers, err := svc.PapersByTag(cmd.Context(), args[0], tagType, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nPapers with tag '%s':\n", args[0])
			for _, p := range papers {
				fmt.Fprintf(out, "  %s: %s\n", p.ArxivID, p.Title)
			}
			return nil
		},
	}
	search.Flags().IntVar(&limit, "limit", services.DefaultTagSearchLimit, "maximum number of papers")

	var ftLimit int
	fulltext := &cobra.Command{
		Use:   "fulltext <query...>",
		Short: "Full-text search over titles and abstracts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			results, err := svc.FullText(cmd.Context(), query, ftLimit)
			if err != nil {
				return err
			}
			printFullText(cmd.OutOrStdout(), query, results)
			return nil
		},
	}
	fulltext.Flags().IntVar(&ftLimit, "limit", services.DefaultFullTextLimit, "maximum number of results")

	allTags := &cobra.Command{
		Use:   "tags [tag_type]",
		Short: "List all tags with their paper counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tagType models.TagType
			if len(args) > 0 {
				tagType = models.TagType(args[0])
			}
			tags, err := svc.AllTags(cmd.Context(), tagType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if tagType != "" {
				fmt.Fprintf(out, "\nAll tags of type %s:\n", tagType)
			} else {
				fmt.Fprintln(out, "\nAll tags:")
			}
			for _, tag := range tags {
				fmt.Fprintf(out, "  [%s] %s (%d papers)\n", tag.TagType, tag.Name, tag.PaperCount)
			}
			return nil
		},
	}

	root.AddCommand(add, remove, list, search, fulltext, allTags)
	return root
}

func typeArg(args []string, i int) models.TagType {
	if len(args) > i {
		return models.TagType(args[i])
	}
	return models.TagTypePersonal
}

func printFullText(w io.Writer, query string, results []services.FullTextResult) {
	fmt.Fprintf(w, "\nSearch results for '%s':\n", query)
	for _, r := range results {
		fmt.Fprintf(w, "  [%.2f] %s: %s\n", r.Relevance, r.ArxivID, r.Title)
	}
}
