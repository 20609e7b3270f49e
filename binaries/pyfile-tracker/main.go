package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Alvareaux/pyfile-tracker/common/log/hooks"
	"github.com/Alvareaux/pyfile-tracker/os/temp"
	"github.com/Alvareaux/pyfile-tracker/snapshot"
	"github.com/Alvareaux/pyfile-tracker/snapshot/cli"
	"github.com/Alvareaux/pyfile-tracker/snapshot/git/gitdb"
	"github.com/Alvareaux/pyfile-tracker/snapshot/git/repo"
	"github.com/Alvareaux/pyfile-tracker/store"
)

var dbTempDir string = ""

func main() {
	log.AddHook(hooks.NewContextHook())

	logLevelFlag := flag.String("log_level", "info", "Log everything at this level and above (error|info|debug)")
	flag.Parse()

	level, err := log.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Error(err)
		os.Exit(2)
	}
	log.SetLevel(level)

	inj := &injector{}
	cmd := cli.MakeCLI(inj)
	cmd.SetArgs(flag.Args())
	err = cmd.Execute()
	removeTemp()
	if err != nil {
		log.Error(err)
		os.Exit(cli.ExitCode(err))
	}
}

type injector struct{}

func (i *injector) RegisterFlags(rootCmd *cobra.Command) {}

func (i *injector) Inject(inputPath, output string, create bool) (snapshot.DB, *store.Store, error) {
	var st *store.Store
	var err error
	if create {
		st, err = store.Locate(inputPath, output)
	} else {
		st, err = store.OpenExisting(inputPath, output)
	}
	if err != nil {
		return nil, nil, err
	}

	var dataRepo *repo.Repository
	if create {
		dataRepo, err = repo.InitRepository(st.GitDir(), st.InputPath)
	} else {
		dataRepo, err = repo.NewRepository(st.GitDir(), st.InputPath)
	}
	if err != nil {
		return nil, nil, err
	}

	tempDir, err := temp.TempDirDefault()
	if err != nil {
		return nil, nil, err
	}
	dbTempDir = tempDir.Dir

	return gitdb.MakeDB(dataRepo, tempDir), st, nil
}

func removeTemp() {
	if dbTempDir != "" {
		os.RemoveAll(dbTempDir)
	}
}
