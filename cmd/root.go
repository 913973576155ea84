package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-gallery",
	Short: "Face recognition gallery for event photography",
	Long: `Face Gallery ingests event photo uploads, learns the faces in them and
serves a kiosk API where visitors retrieve their own photos with a live
camera capture. Ingestion talks to a face detection server for embeddings
and files every photo under the people found in it.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
