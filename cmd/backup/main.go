package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"familytree/internal/config"
	"familytree/internal/database"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/service"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing members before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	memberRepo := repository.NewMemberRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	configRepo := repository.NewBackupConfigRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	snapshotService := service.NewSnapshotService(snapshotRepo, memberRepo, configRepo, activityRepo, nil, nil, logger.New("backup"))

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(snapshotService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(snapshotService, memberRepo, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(snapshotService *service.SnapshotService, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	name := fmt.Sprintf("CLI export %s", time.Now().Format("2006-01-02 15:04"))
	snapshot, err := snapshotService.CreateSnapshot(context.Background(), name, models.SnapshotManual, nil)
	if err != nil {
		log.Fatalf("Snapshot failed: %v", err)
	}

	document, err := snapshotService.BuildBackupDocument(snapshot.ID)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Fatalf("Failed to write output file: %v", err)
	}

	log.Printf("Exported %d members to %s (%.2f MB)",
		len(document.Members), outputPath, float64(len(data))/1024/1024)
	log.Printf("Export complete! Snapshot #%d retained in the database", snapshot.ID)
}

func handleImport(snapshotService *service.SnapshotService, memberRepo *repository.MemberRepository, inputPath string, clearData bool) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}

	var document models.BackupDocument
	if err := json.Unmarshal(data, &document); err != nil || len(document.Members) == 0 {
		// Also accept a bare member array
		var members []models.FamilyMember
		if err := json.Unmarshal(data, &members); err != nil {
			log.Fatalf("Input is neither a backup document nor a member array: %v", err)
		}
		document.Members = members
	}

	if clearData {
		fmt.Print("WARNING: This will delete all existing members. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}

		// Keep a way back before wiping
		name := fmt.Sprintf("Pre-import %s", time.Now().Format("2006-01-02 15:04"))
		if _, err := snapshotService.CreateSnapshot(context.Background(), name, models.SnapshotPreRestore, nil); err != nil {
			log.Fatalf("Failed to capture pre-import snapshot: %v", err)
		}
		if err := memberRepo.DeleteAllMembers(); err != nil {
			log.Fatalf("Failed to clear members: %v", err)
		}
		log.Println("Existing members cleared")
	}

	imported, failed := 0, 0
	for i := range document.Members {
		if err := memberRepo.CreateMember(&document.Members[i]); err != nil {
			failed++
			log.Printf("Failed to import member %s: %v", document.Members[i].ID, err)
			continue
		}
		imported++
	}

	log.Printf("Import complete! %d members imported, %d failed", imported, failed)
}

func printUsage() {
	fmt.Println("Family Tree Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export the member set to a JSON file")
	fmt.Println("  backup import [options]    Import members from a JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing members before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Export the tree")
	fmt.Println("  backup export")
	fmt.Println("  backup export -output mybackup.json")
	fmt.Println()
	fmt.Println("  # Import members (merge with existing data)")
	fmt.Println("  backup import -input backup.json")
	fmt.Println()
	fmt.Println("  # Import members (replace all data)")
	fmt.Println("  backup import -input backup.json -clear")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./familytree.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
