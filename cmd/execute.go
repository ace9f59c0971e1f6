package cmd

// Execute is the entry point called from main. All command wiring lives in
// this package so main.go stays minimal.
func Execute() error {
	return rootCmd.Execute()
}
