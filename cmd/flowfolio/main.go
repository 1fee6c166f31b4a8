package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowfolio/flowfolio/internal/config"
	portfoliostatedb "github.com/flowfolio/flowfolio/internal/database"
	"github.com/flowfolio/flowfolio/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "flowfolio",
	Short: "Top Shot portfolio CLI",
	Long:  `Inspect the locally persisted portfolio state: cached edition metadata and the swap transaction registry.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(txsCmd)
	txsCmd.AddCommand(txsListCmd)
	txsCmd.AddCommand(txsCopyCmd)
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataRefreshCmd)
	metadataCmd.AddCommand(metadataShowCmd)
}

func initConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file loaded: %s", err.Error())
	}

	err = config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	err = logger.Init(viper.GetString("log_level"), viper.GetString("log_file"))
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}

	err = portfoliostatedb.InitSQLiteDB(viper.GetString("portfolio_db_path"))
	if err != nil {
		log.Fatalf("Error opening portfolio database: %v", err)
	}
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
