package usecase

import "time"

type noopObserver struct{}

func (noopObserver) ObserveExecution(string, time.Duration) {}
func (noopObserver) ObserveStrategy(string, int, error)     {}
func (noopObserver) ObserveDegradedEmbeddingBatch()         {}
func (noopObserver) ObserveEligibleClusters(int)            {}
