package router

import (
	nexus "github.com/3bi-io/nexus-core"
)

// Static planning baselines per (task, backend, priority). Costs are rough
// per-call USD figures; latencies are typical end-to-end milliseconds.
// Intentionally independent from the live stats store.
func catalog(task nexus.TaskType, backend nexus.Backend, priority nexus.Priority) modelSpec {
	switch backend {
	case nexus.BackendLocal:
		return localCatalog(task)
	case nexus.BackendPrimary:
		return primaryCatalog(task, priority)
	case nexus.BackendSecondary:
		return secondaryCatalog(task)
	}
	return modelSpec{}
}

func localCatalog(task nexus.TaskType) modelSpec {
	// Local inference has zero marginal cost across the board.
	switch task {
	case nexus.TaskChat, nexus.TaskTextGeneration:
		return modelSpec{model: "phi-3.5-mini", cost: 0, latencyMs: 400}
	case nexus.TaskEmbedding:
		return modelSpec{model: "all-MiniLM-L6-v2", cost: 0, latencyMs: 50}
	case nexus.TaskClassification:
		return modelSpec{model: "distilbert-sst2", cost: 0, latencyMs: 80}
	case nexus.TaskObjectDetection:
		return modelSpec{model: "detr-resnet-50", cost: 0, latencyMs: 250}
	case nexus.TaskCaptioning:
		return modelSpec{model: "vit-gpt2-captioning", cost: 0, latencyMs: 300}
	}
	return modelSpec{}
}

func primaryCatalog(task nexus.TaskType, priority nexus.Priority) modelSpec {
	switch task {
	case nexus.TaskChat, nexus.TaskTextGeneration:
		switch priority {
		case nexus.PrioritySpeed:
			return modelSpec{model: "openai/gpt-4o-mini", cost: 0.002, latencyMs: 600}
		case nexus.PriorityQuality:
			return modelSpec{model: "anthropic/claude-3.5-sonnet", cost: 0.015, latencyMs: 1500}
		default:
			return modelSpec{model: "openai/gpt-4o", cost: 0.008, latencyMs: 1000}
		}
	case nexus.TaskEmbedding:
		return modelSpec{model: "openai/text-embedding-3-small", cost: 0.0001, latencyMs: 300}
	case nexus.TaskClassification:
		return modelSpec{model: "openai/gpt-4o-mini", cost: 0.001, latencyMs: 500}
	case nexus.TaskImageGen:
		return modelSpec{model: "black-forest-labs/flux-pro", cost: 0.05, latencyMs: 8000}
	}
	return modelSpec{}
}

func secondaryCatalog(task nexus.TaskType) modelSpec {
	switch task {
	case nexus.TaskChat, nexus.TaskTextGeneration:
		return modelSpec{model: "llama-3.1-70b-instruct", cost: 0.001, latencyMs: 1800}
	case nexus.TaskEmbedding:
		return modelSpec{model: "bge-base-en-v1.5", cost: 0.00005, latencyMs: 400}
	case nexus.TaskClassification:
		return modelSpec{model: "deberta-v3-base-zeroshot", cost: 0.0002, latencyMs: 600}
	case nexus.TaskImageGen:
		return modelSpec{model: "sdxl-turbo", cost: 0.01, latencyMs: 4000}
	}
	return modelSpec{}
}
