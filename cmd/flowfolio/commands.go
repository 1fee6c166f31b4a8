package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	portfoliostatedb "github.com/flowfolio/flowfolio/internal/database"
	"github.com/flowfolio/flowfolio/internal/metadata"
	"github.com/flowfolio/flowfolio/internal/txcenter"
)

func openCenter() *txcenter.Center {
	return txcenter.New(
		portfoliostatedb.Store{},
		viper.GetDuration("tx_retention_age"),
		viper.GetInt("tx_retention_count"),
	)
}

var txsCmd = &cobra.Command{
	Use:   "txs",
	Short: "Inspect the persisted transaction registry",
}

var txsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active and recent swap transactions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		center := openCenter()
		out := map[string][]txcenter.Record{
			"active": center.Active(),
			"recent": center.Recent(),
		}
		json.NewEncoder(os.Stdout).Encode(out)
	},
}

var txsCopyCmd = &cobra.Command{
	Use:   "copy <uiId>",
	Short: "Copy a transaction's ledger id to the clipboard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		center := openCenter()
		for _, rec := range append(center.Active(), center.Recent()...) {
			if rec.UIID != args[0] {
				continue
			}
			if rec.LedgerTxID == "" {
				fmt.Fprintln(os.Stderr, "Transaction has no ledger id yet")
				os.Exit(1)
			}
			if err := clipboard.WriteAll(rec.LedgerTxID); err != nil {
				fmt.Fprintf(os.Stderr, "Error copying to clipboard: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Copied %s to clipboard\n", rec.LedgerTxID)
			return
		}
		fmt.Fprintf(os.Stderr, "No transaction with id %s\n", args[0])
		os.Exit(1)
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Inspect the edition metadata cache",
}

var metadataRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the edition metadata snapshot and persist it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// Drop the persisted snapshot first so the load cannot be
		// satisfied from a still-fresh store entry.
		err := portfoliostatedb.DeleteCacheEntryFromSQLite(portfoliostatedb.EditionMetadataKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing persisted snapshot: %v\n", err)
			os.Exit(1)
		}
		cache := metadata.New(
			viper.GetString("metadata_url"),
			viper.GetDuration("metadata_ttl"),
			portfoliostatedb.Store{},
		)
		entries := cache.Load(context.Background())
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Metadata fetch returned nothing; cache left as is")
			os.Exit(1)
		}
		fmt.Printf("Cached %d editions\n", len(entries))
	},
}

var metadataShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted edition metadata snapshot",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, data, err := portfoliostatedb.LoadMetadataSnapshot()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading metadata snapshot: %v\n", err)
			os.Exit(1)
		}
		if len(data) == 0 {
			fmt.Println("No metadata snapshot persisted yet")
			return
		}
		var rows []metadata.Entry
		if err := json.Unmarshal(data, &rows); err != nil {
			fmt.Fprintf(os.Stderr, "Persisted snapshot is not readable: %v\n", err)
			os.Exit(1)
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].SetID != rows[j].SetID {
				return rows[i].SetID < rows[j].SetID
			}
			return rows[i].PlayID < rows[j].PlayID
		})
		json.NewEncoder(os.Stdout).Encode(rows)
	},
}
