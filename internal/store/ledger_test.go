package store

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"emr_etl/internal/orchestrator"
)

type ledgerSuite struct {
	ledger *Ledger
	db     *sql.DB
	suite.Suite
}

func TestLedger(t *testing.T) {
	suite.Run(t, new(ledgerSuite))
}

func (suite *ledgerSuite) SetupTest() {
	db, err := InitDatabase(":memory:")
	if err != nil {
		log.Fatal(err)
	}
	suite.db = db
	suite.ledger = NewLedger(db, db)
}

func (suite *ledgerSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *ledgerSuite) TestCreateRun() {
	run, err := suite.ledger.CreateRun(context.Background(), "config.json", "j-ABC")

	suite.NoError(err)
	suite.NotEmpty(run.RunID)
	suite.False(run.CreatedOn.IsZero())

	read, err := suite.ledger.ReadRun(context.Background(), run.RunID)
	suite.NoError(err)
	suite.Equal("j-ABC", read.ClusterID)
	suite.Equal("config.json", read.ConfigPath)

	runs, err := suite.ledger.ListRuns(context.Background())
	suite.NoError(err)
	suite.Len(runs, 1)
}

func (suite *ledgerSuite) TestRecordSubmissionUpserts() {
	ctx := context.Background()
	run, err := suite.ledger.CreateRun(ctx, "config.json", "j-ABC")
	suite.Require().NoError(err)
	recorder := suite.ledger.Recorder(run.RunID)

	sub := &orchestrator.Submission{
		Index:       0,
		Name:        "clean",
		JobID:       "s-1",
		Script:      "s3://scripts/clean.py",
		Input:       "s3://in/raw/",
		Output:      "s3://tmp/boatclean_output/",
		Status:      orchestrator.StatusPending,
		SubmittedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	suite.NoError(recorder.Record(ctx, sub))

	sub.Status = orchestrator.StatusCompleted
	sub.FinishedAt = time.Date(2024, 3, 15, 10, 5, 0, 0, time.UTC)
	suite.NoError(recorder.Record(ctx, sub))

	second := &orchestrator.Submission{Index: 1, Name: "aggregate", JobID: "s-2", Status: orchestrator.StatusRunning}
	suite.NoError(recorder.Record(ctx, second))

	subs, err := suite.ledger.ListSubmissions(ctx, run.RunID)
	suite.NoError(err)
	suite.Require().Len(subs, 2)
	suite.Equal("clean", subs[0].StepName)
	suite.Equal("COMPLETED", subs[0].Status)
	suite.Equal("s3://tmp/boatclean_output/", subs[0].OutputLocation)
	suite.Require().NotNil(subs[0].FinishedOn)
	suite.Equal(5*time.Minute, subs[0].FinishedOn.Sub(*subs[0].SubmittedOn))
	suite.Equal("RUNNING", subs[1].Status)
	suite.Nil(subs[1].FinishedOn)
}

func (suite *ledgerSuite) TestRecordSubmissionRequiresRun() {
	err := suite.ledger.RecordSubmission(context.Background(), "missing", &orchestrator.Submission{Name: "x"})

	suite.Error(err)
}
