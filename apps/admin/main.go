package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
	cachesvc "github.com/trezcool/masomo/services/cache"
	logsvc "github.com/trezcool/masomo/services/logger"
	"github.com/trezcool/masomo/storage/database"
	sqlxrepos "github.com/trezcool/masomo/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	errAndDie(database.Ping(ctx, db))
	cancel()

	// the CLI runs once; a process-local cache is enough
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	gradingSvc := grading.NewService(sqlxrepos.NewGradingRepository(db), cachesvc.NewMemory(), appLogger, conf)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		conf:       conf,
		gradingSvc: gradingSvc,
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
