package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeJobs answers Status with a scripted sequence per step name; the last
// state repeats.
type fakeJobs struct {
	mu        sync.Mutex
	script    map[string][]Status
	specs     []JobSpec
	polls     map[string]int
	submitErr error
}

func newFakeJobs(script map[string][]Status) *fakeJobs {
	return &fakeJobs{script: script, polls: make(map[string]int)}
}

func (f *fakeJobs) Submit(_ context.Context, _ string, spec JobSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.specs = append(f.specs, spec)
	return "s-" + spec.Name, nil
}

func (f *fakeJobs) Status(_ context.Context, _ string, jobID string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := jobID[len("s-"):]
	seq, ok := f.script[name]
	if !ok || len(seq) == 0 {
		return StatusCompleted, nil
	}
	i := f.polls[name]
	f.polls[name]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i], nil
}

type memRecorder struct {
	events []string
}

func (r *memRecorder) Record(_ context.Context, s *Submission) error {
	r.events = append(r.events, fmt.Sprintf("%s:%s", s.Name, s.Status))
	return nil
}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func threeStepPlan() Plan {
	return Plan{
		ClusterID:       "j-CLUSTER",
		StepCount:       3,
		Steps:           []string{"step1", "step2", "step3"},
		InitialInput:    "s3://in/raw/",
		ScriptsPath:     "s3://scripts/scripts/transformation/",
		TempOutputPath:  "s3://tmp/",
		FinalOutputPath: "s3://out/final/",
		RunPrefix:       "boat",
	}
}

var _ = ginkgo.Describe("job chain orchestrator", func() {
	var (
		jobs     *fakeJobs
		recorder *memRecorder
		waits    []time.Duration
		after    func(time.Duration) <-chan time.Time
	)

	ginkgo.BeforeEach(func() {
		recorder = &memRecorder{}
		waits = nil
		after = func(d time.Duration) <-chan time.Time {
			waits = append(waits, d)
			return immediate(d)
		}
	})

	ginkgo.Context("plan", func() {
		ginkgo.It("writes the last step to the final path and the others to temp", func() {
			p := threeStepPlan()
			Expect(p.OutputLocation(0)).To(Equal("s3://tmp/boatstep1_output/"))
			Expect(p.OutputLocation(1)).To(Equal("s3://tmp/boatstep2_output/"))
			Expect(p.OutputLocation(2)).To(Equal("s3://out/final/"))
			Expect(p.ScriptLocation(1)).To(Equal("s3://scripts/scripts/transformation/step2.py"))
		})

		ginkgo.It("references staged scripts when they are known", func() {
			p := threeStepPlan()
			p.Scripts = map[string]string{
				"step1": "s3://scripts/scripts/transformation/step1_v2.py",
				"step2": "s3://scripts/scripts/transformation/step2.py",
				"step3": "s3://scripts/scripts/transformation/step3.py",
			}
			Expect(p.Validate()).To(Succeed())
			Expect(p.ScriptLocation(0)).To(Equal("s3://scripts/scripts/transformation/step1_v2.py"))
		})

		ginkgo.It("rejects staged scripts that miss a step", func() {
			p := threeStepPlan()
			p.Scripts = map[string]string{"step1": "s3://scripts/scripts/transformation/step1.py"}

			var invalid *ErrInvalidPlan
			Expect(errors.As(p.Validate(), &invalid)).To(BeTrue())
		})

		ginkgo.It("uses the final path for a single step plan", func() {
			p := threeStepPlan()
			p.Steps = []string{"only"}
			Expect(p.OutputLocation(0)).To(Equal("s3://out/final/"))
		})
	})

	ginkgo.Context("step count mismatch", func() {
		ginkgo.It("submits nothing", func() {
			jobs = newFakeJobs(nil)
			p := threeStepPlan()
			p.StepCount = 2

			subs, err := New(jobs, withClock(after, time.Now)).Run(context.Background(), p)

			var mismatch *ErrStepCountMismatch
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Declared).To(Equal(2))
			Expect(mismatch.Named).To(Equal(3))
			Expect(subs).To(BeEmpty())
			Expect(jobs.specs).To(BeEmpty())
		})

		ginkgo.It("rejects an invalid plan before submitting", func() {
			jobs = newFakeJobs(nil)
			p := threeStepPlan()
			p.ClusterID = ""

			_, err := New(jobs).Run(context.Background(), p)

			var invalid *ErrInvalidPlan
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(jobs.specs).To(BeEmpty())
		})
	})

	ginkgo.Context("chain wiring", func() {
		ginkgo.It("feeds each output into the next input", func() {
			jobs = newFakeJobs(map[string][]Status{
				"step1": {StatusPending, StatusRunning, StatusCompleted},
			})
			o := New(jobs, WithRecorder(recorder), WithPollInterval(20*time.Second), withClock(after, time.Now))

			subs, err := o.Run(context.Background(), threeStepPlan())

			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(3))
			Expect(jobs.specs[0].Input).To(Equal("s3://in/raw/"))
			Expect(jobs.specs[0].Output).To(HaveSuffix("boatstep1_output/"))
			Expect(jobs.specs[1].Input).To(Equal(jobs.specs[0].Output))
			Expect(jobs.specs[2].Input).To(Equal(jobs.specs[1].Output))
			Expect(jobs.specs[2].Output).To(Equal("s3://out/final/"))
			for _, s := range subs {
				Expect(s.Status).To(Equal(StatusCompleted))
				Expect(s.FinishedAt).NotTo(BeZero())
			}
		})

		ginkgo.It("polls on the fixed interval until a terminal state", func() {
			jobs = newFakeJobs(map[string][]Status{
				"step1": {StatusPending, StatusRunning, StatusRunning, StatusCompleted},
			})
			o := New(jobs, WithRecorder(recorder), WithPollInterval(20*time.Second), withClock(after, time.Now))

			_, err := o.Run(context.Background(), threeStepPlan())

			Expect(err).NotTo(HaveOccurred())
			Expect(waits).To(HaveLen(3))
			Expect(waits).To(HaveEach(20 * time.Second))
			Expect(recorder.events[:3]).To(Equal([]string{"step1:PENDING", "step1:RUNNING", "step1:COMPLETED"}))
		})
	})

	ginkgo.Context("failure policy", func() {
		ginkgo.BeforeEach(func() {
			jobs = newFakeJobs(map[string][]Status{
				"step2": {StatusRunning, StatusFailed},
			})
		})

		ginkgo.It("continues past a failed step by default", func() {
			subs, err := New(jobs, withClock(after, time.Now)).Run(context.Background(), threeStepPlan())

			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(3))
			Expect(subs[1].Status).To(Equal(StatusFailed))
			Expect(jobs.specs[2].Input).To(Equal(subs[1].Output))
			Expect(subs[2].Status).To(Equal(StatusCompleted))
		})

		ginkgo.It("halts after a failed step when asked to", func() {
			subs, err := New(jobs, WithFailurePolicy(HaltOnFailure), withClock(after, time.Now)).
				Run(context.Background(), threeStepPlan())

			Expect(err).NotTo(HaveOccurred())
			Expect(subs).To(HaveLen(2))
			Expect(subs[1].Status).To(Equal(StatusFailed))
			Expect(jobs.specs).To(HaveLen(2))
		})
	})

	ginkgo.Context("errors", func() {
		ginkgo.It("stops polling when the context is cancelled", func() {
			jobs = newFakeJobs(map[string][]Status{"step1": {StatusRunning}})
			ctx, cancel := context.WithCancel(context.Background())
			blocked := func(time.Duration) <-chan time.Time {
				cancel()
				return make(chan time.Time)
			}

			subs, err := New(jobs, withClock(blocked, time.Now)).Run(ctx, threeStepPlan())

			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(subs).To(HaveLen(1))
			Expect(subs[0].Status).To(Equal(StatusRunning))
		})

		ginkgo.It("returns a submit failure", func() {
			jobs = newFakeJobs(nil)
			jobs.submitErr = errors.New("cluster terminated")

			subs, err := New(jobs).Run(context.Background(), threeStepPlan())

			Expect(err).To(MatchError("cluster terminated"))
			Expect(subs).To(BeEmpty())
		})
	})
})

type fakeEMR struct {
	added *emr.AddJobFlowStepsInput
	state string
}

func (f *fakeEMR) AddJobFlowStepsWithContext(_ aws.Context, in *emr.AddJobFlowStepsInput, _ ...request.Option) (*emr.AddJobFlowStepsOutput, error) {
	f.added = in
	return &emr.AddJobFlowStepsOutput{StepIds: aws.StringSlice([]string{"s-123"})}, nil
}

func (f *fakeEMR) DescribeStepWithContext(_ aws.Context, _ *emr.DescribeStepInput, _ ...request.Option) (*emr.DescribeStepOutput, error) {
	return &emr.DescribeStepOutput{Step: &emr.Step{Status: &emr.StepStatus{State: aws.String(f.state)}}}, nil
}

var _ = ginkgo.Describe("EMR job service", func() {
	ginkgo.It("submits a spark-submit step that continues on failure", func() {
		client := &fakeEMR{}
		svc := newEMRJobServiceWithClient(client, "ETL_")

		id, err := svc.Submit(context.Background(), "j-1", JobSpec{
			Name: "clean", Script: "s3://b/clean.py", Input: "s3://in/", Output: "s3://out/",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("s-123"))
		Expect(aws.StringValue(client.added.JobFlowId)).To(Equal("j-1"))
		step := client.added.Steps[0]
		Expect(aws.StringValue(step.Name)).To(Equal("ETL_clean"))
		Expect(aws.StringValue(step.ActionOnFailure)).To(Equal("CONTINUE"))
		Expect(aws.StringValue(step.HadoopJarStep.Jar)).To(Equal("command-runner.jar"))
		Expect(aws.StringValueSlice(step.HadoopJarStep.Args)).To(Equal([]string{
			"spark-submit", "s3://b/clean.py", "--input", "s3://in/", "--output", "s3://out/",
		}))
	})

	ginkgo.DescribeTable("maps step states",
		func(state string, want Status) {
			svc := newEMRJobServiceWithClient(&fakeEMR{state: state}, "")
			got, err := svc.Status(context.Background(), "j-1", "s-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
			Expect(got.IsTerminal()).To(Equal(want == StatusCompleted || want == StatusFailed || want == StatusCancelled))
		},
		ginkgo.Entry("pending", "PENDING", StatusPending),
		ginkgo.Entry("cancel pending", "CANCEL_PENDING", StatusRunning),
		ginkgo.Entry("running", "RUNNING", StatusRunning),
		ginkgo.Entry("completed", "COMPLETED", StatusCompleted),
		ginkgo.Entry("cancelled", "CANCELLED", StatusCancelled),
		ginkgo.Entry("failed", "FAILED", StatusFailed),
		ginkgo.Entry("interrupted", "INTERRUPTED", StatusFailed),
	)
})
