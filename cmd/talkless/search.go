package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talkless/talkless/config"
	"github.com/talkless/talkless/internal/index"
)

func searchCMD() *cobra.Command {
	var cfgPath string
	var limit int

	var search = &cobra.Command{
		Use:   "search [query]",
		Short: "Search generated summaries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Search.IndexPath == "" {
				return fmt.Errorf("search.index_path not configured")
			}

			idx, err := index.Open(cfg.Search.IndexPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%-16s %.3f  %s\n", h.GroupID, h.Score, h.Topic)
			}
			return nil
		},
	}
	search.Flags().IntVar(&limit, "limit", 10, "maximum results")
	search.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return search
}
