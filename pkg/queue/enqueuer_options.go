package queue

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue string
}

// WithDefaultQueue sets the queue tasks are enqueued to by default
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// EnqueueOption is a functional option for a single Enqueue call
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue      string
	taskName   string
	maxRetries int8
}

// WithQueue overrides the target queue for this task
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithTaskName overrides the task name derived from the payload type
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

// WithMaxRetries sets the total attempt budget for this task
func WithMaxRetries(n int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}
