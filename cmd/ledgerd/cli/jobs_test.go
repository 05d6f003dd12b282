package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault, Payload: task.Payload()}, nil
}

func (s *stubEnqueuer) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s1", Type: jobs.TaskLedgerIntegrity}}, s.err
}

func (s stubInspector) Close() error { return nil }

func TestTriggerCommandEnqueuesIntegrityForPeriod(t *testing.T) {
	enq := &stubEnqueuer{}
	cli := &JobsCLI{client: enq, inspector: stubInspector{}}

	stdout := new(bytes.Buffer)
	code := cli.TriggerCommand(context.Background(), TriggerOptions{
		Job:    jobs.TaskLedgerIntegrity,
		Scope:  "ws/org",
		Period: "2024-07",
		Stdout: stdout,
		Stderr: new(bytes.Buffer),
	})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "enqueued ledger:integrity id=t1")
	require.Len(t, enq.tasks, 1)

	var payload jobs.IntegrityPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, jobs.IntegrityPayload{WorkspaceID: "ws", OrgID: "org", Year: 2024, Month: 7}, payload)
}

func TestTriggerCommandRejectsBadInput(t *testing.T) {
	cli := &JobsCLI{client: &stubEnqueuer{}, inspector: stubInspector{}}
	cases := map[string]TriggerOptions{
		"scope":  {Job: jobs.TaskLedgerReconcile, Scope: "ws"},
		"job":    {Job: "mail:send", Scope: "ws/org"},
		"period": {Job: jobs.TaskLedgerIntegrity, Scope: "ws/org", Period: "July"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			stderr := new(bytes.Buffer)
			opts.Stdout, opts.Stderr = new(bytes.Buffer), stderr
			require.Equal(t, 1, cli.TriggerCommand(context.Background(), opts))
			require.Contains(t, stderr.String(), "jobs trigger:")
		})
	}
}

func TestStatsCommand(t *testing.T) {
	cli := &JobsCLI{client: &stubEnqueuer{}, inspector: stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}}

	stdout := new(bytes.Buffer)
	require.Equal(t, 0, cli.StatsCommand(context.Background(), StatsOptions{JSONOutput: true, Stdout: stdout}))
	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, QueueStats{Queue: "default", Pending: 3, Retry: 1}, stats)

	stdout.Reset()
	require.Equal(t, 0, cli.StatsCommand(context.Background(), StatsOptions{Stdout: stdout}))
	require.Equal(t, "queue=default pending=3 active=0 scheduled=0 retry=1\n", stdout.String())

	scheduled, err := cli.ListScheduled(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)

	broken := &JobsCLI{client: &stubEnqueuer{}, inspector: stubInspector{err: errors.New("redis down")}}
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, broken.StatsCommand(context.Background(), StatsOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "redis down")
}
