package main

import (
	"fmt"
	"os"
	"time"

	"thestack-server/internal/infrastructure/storage"
)

// twrsdump - просмотр снимка башни (.twrs) без запуска сервера.
// Удобно при разборе багрепортов: видно порядок установки, владельцев
// и согласованность заголовка с журналом.
func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	path := os.Args[1]

	snap, err := storage.LoadFile(path)
	if err != nil {
		fmt.Printf("Failed to read snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Saved at:      %s\n", time.UnixMilli(snap.SavedAt).Format(time.RFC3339))
	fmt.Printf("Current layer: %d\n", snap.CurrentLayer)
	fmt.Printf("Completed:     %v\n", snap.Completed)
	fmt.Printf("Bricks:        %d\n\n", len(snap.Bricks))

	for i, b := range snap.Bricks {
		fmt.Printf("%4d  %-12s %-8s by %s (%s) at %s\n",
			i, b.Pos, b.Color, b.OwnerName, b.OwnerID,
			time.UnixMilli(b.PlacedAt).Format("15:04:05.000"))
	}
}

func printHelp() {
	fmt.Println(`twrsdump - инспектор снимков башни
Usage:
  twrsdump <path/to/tower.twrs>`)
}
