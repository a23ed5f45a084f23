package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEscalationCheck = "threads.escalation_check"

const TaskThreadAnalysis = "threads.analysis"

type EscalationCheckPayload struct {
	ThreadID string `json:"threadId"`
}

type ThreadAnalysisPayload struct {
	ThreadID string `json:"threadId"`
}

func NewEscalationCheckTask(payload EscalationCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEscalationCheck, data), nil
}

func ParseEscalationCheckPayload(task *asynq.Task) (EscalationCheckPayload, error) {
	var payload EscalationCheckPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EscalationCheckPayload{}, err
	}
	return payload, nil
}

func NewThreadAnalysisTask(payload ThreadAnalysisPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskThreadAnalysis, data), nil
}

func ParseThreadAnalysisPayload(task *asynq.Task) (ThreadAnalysisPayload, error) {
	var payload ThreadAnalysisPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ThreadAnalysisPayload{}, err
	}
	return payload, nil
}
