package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"typecho-publish/lib/configutil"
	"typecho-publish/lib/pacing"
	"typecho-publish/lib/scrapers/typecho/admin"
	"typecho-publish/lib/scrapers/typecho/core"
	"typecho-publish/lib/transfer"
	"typecho-publish/services/publisher"
)

var rootCmd = &cobra.Command{
	Use:   "typecho-publish <folder>",
	Short: "typecho-publish batch publishes a folder of markdown documents to a Typecho blog.",
	Args:  cobra.ExactArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// optional, secrets can come from the environment instead
		godotenv.Load()
	},
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd.Context(), args[0])
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func run(ctx context.Context, folder string) {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		fatal("failed to read config", err)
	}

	info, err := os.Stat(folder)
	if err != nil {
		fatal("cannot access folder", err)
	}
	if !info.IsDir() {
		fatal("invalid target", fmt.Errorf("%s is not a folder", folder))
	}

	paths, err := publisher.ListDocuments(folder)
	if err != nil {
		fatal("failed to list folder", err)
	}
	if len(paths) == 0 {
		fatal("nothing to publish", fmt.Errorf("no markdown files in %s", folder))
	}

	pace := pacing.Human{
		Min: seconds(cfg.Request.MinDelay),
		Max: seconds(cfg.Request.MaxDelay),
	}
	session, err := core.NewClient(core.ClientOptions{
		Domain:       cfg.Global.Domain,
		HomeURL:      cfg.Site.HomeURL,
		LoginURL:     cfg.Site.LoginPage,
		AdminURL:     cfg.Site.AdminURL,
		Username:     cfg.Login.Username,
		Password:     cfg.Login.Password,
		CookiePrefix: cfg.Login.CookiePrefix,
		UserAgent:    cfg.Request.UserAgent,
	}, pace)
	if err != nil {
		fatal("failed to initialize session", err)
	}
	if err := session.Login(ctx); err != nil {
		session.Close()
		fatal("login failed", err)
	}

	adminClient := admin.NewClient(session, admin.Options{
		HomeURL:             cfg.Site.HomeURL,
		AdminURL:            cfg.Site.AdminURL,
		WriteURL:            cfg.Site.WritePostURL,
		ManagePostsURL:      cfg.Site.ManagePostsURL,
		ManageCategoriesURL: cfg.Site.ManageCategoriesURL,
		Timezone:            cfg.Global.Timezone,
		DefaultCategoryID:   cfg.Category.DefaultCategoryID,
	})
	categories := adminClient.DiscoverCategories(ctx)

	stdin := bufio.NewScanner(os.Stdin)
	selected := selectFiles(stdin, os.Stdout, paths)
	if len(selected) == 0 {
		session.Close()
		slog.Info("no files selected")
		return
	}
	categoryIDs := selectCategories(stdin, os.Stdout, categories)

	batch := publisher.Batch{
		Pipeline: &publisher.Pipeline{
			Session:    session,
			Admin:      adminClient,
			Dial:       transfer.Dialer(cfg.Ftp),
			ImageBase:  cfg.Image.ServerImgURL,
			RemoteBase: cfg.Ftp.BasePath,
		},
		Relocator: publisher.Relocator{
			StagingRoot: cfg.Image.ProcessedImgRoot,
			SpaceChar:   cfg.Image.SpaceReplaceChar,
		},
		Pace:       pace,
		BatchDelay: seconds(cfg.Request.BatchDelay),
	}
	printSummary(os.Stdout, batch.Run(ctx, selected, categoryIDs))
}

func printSummary(out io.Writer, result publisher.BatchResult) {
	renderTable(out, table.Row{"Attempted", "Succeeded", "Failed"},
		[]table.Row{{result.Attempted, result.Succeeded, result.Failed}})
	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out, "failed files, retry these manually:")
		for _, name := range result.FailedDocs {
			fmt.Fprintln(out, "  -", name)
		}
	}
}
