package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "instagram-organizer",
	Short: "A CLI tool for curating photo folders into Instagram posts using AI",
	Long: `Instagram Organizer scans a folder of photos, removes near-duplicate
shots, scores every photo with a vision model (Gemini, OpenAI or Ollama),
filters contextually redundant ones and assembles the best into
ready-to-post collections with caption scaffolds and an analytics report.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
