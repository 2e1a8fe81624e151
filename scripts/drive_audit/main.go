// Command drive_audit cross-checks the file_uploads table against
// Google Drive. Local persistence is never rolled back after a
// successful Drive write, so the two stores can drift: a metadata row
// may point at a remote file that was deleted out of band. This tool
// reports those dangling rows so they can be cleaned up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/lms-community/lms-api/internal/drive"
	"github.com/lms-community/lms-api/internal/models"
	"github.com/lms-community/lms-api/internal/repository"
	"github.com/lms-community/lms-api/pkg/config"
	"github.com/lms-community/lms-api/pkg/database"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

func main() {
	userID := flag.String("user", "", "only audit uploads owned by this user")
	limit := flag.Int("limit", 500, "maximum rows to check per user")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	users := repository.NewUserRepository(db)
	files := repository.NewFileRepository(db)
	factory := drive.NewGoogleFactory(cfg.Drive, users, nil)

	ownerIDs := []string{}
	if *userID != "" {
		ownerIDs = append(ownerIDs, *userID)
	} else {
		list, _, err := users.List(ctx, models.UserFilter{PageSize: 1000})
		if err != nil {
			log.Fatalf("failed to list users: %v", err)
		}
		for _, u := range list {
			if u.HasDriveAccess() {
				ownerIDs = append(ownerIDs, u.ID)
			}
		}
	}

	dangling := 0
	for _, owner := range ownerIDs {
		n, err := auditOwner(ctx, files, factory, owner, *limit)
		if err != nil {
			log.Printf("owner %s: %v", owner, err)
			continue
		}
		dangling += n
	}

	fmt.Printf("dangling metadata rows: %d\n", dangling)
	if dangling > 0 {
		os.Exit(1)
	}
}

func auditOwner(ctx context.Context, files *repository.FileRepository, factory drive.ClientFactory, owner string, limit int) (int, error) {
	cli, err := factory.ForUser(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("drive client: %w", err)
	}

	uploads, _, err := files.ListByUser(ctx, owner, models.FileFilter{Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	dangling := 0
	for _, upload := range uploads {
		if _, err := cli.GetFile(ctx, upload.DriveFileID); err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound) {
				fmt.Printf("dangling\t%s\t%s\t%s\n", upload.DriveFileID, upload.Purpose, upload.OriginalName)
				dangling++
				continue
			}
			return dangling, fmt.Errorf("get file %s: %w", upload.DriveFileID, err)
		}
	}
	return dangling, nil
}
