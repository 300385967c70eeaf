package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/framecore/engine/core"
)

// JobTask is a unit of work run on one of the job system workers.
type JobTask struct {
	Run func() error
	// Optional. Called after a successful Run.
	OnComplete func()
	// Optional. Called with the error of a failed Run.
	OnFailure func(err error)
	// Optional. Called last, whatever the outcome.
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				if err := job.Run(); err != nil {
					core.LogError(err.Error())
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
				} else if job.OnComplete != nil {
					job.OnComplete()
				}

				if job.OnCompletionCallback != nil {
					job.OnCompletionCallback()
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run; Shutdown returns
 * once every worker has exited.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.isClosed {
		js.mutex.Unlock()
		return ErrJobSystemClosed
	}
	js.isClosed = true
	close(js.jobQueue)
	js.mutex.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mutex.Lock()
	defer js.mutex.Unlock()
	if js.isClosed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

// RunAll runs every task on the workers and waits for all of them. The errors of failed tasks
// are joined in task order.
func (js *JobSystem) RunAll(tasks ...func() error) error {
	errs := make([]error, len(tasks))
	var done sync.WaitGroup
	for i, task := range tasks {
		i := i
		done.Add(1)
		err := js.Submit(JobTask{
			Run:                  task,
			OnFailure:            func(err error) { errs[i] = err },
			OnCompletionCallback: done.Done,
		})
		if err != nil {
			done.Done()
			errs[i] = err
		}
	}
	done.Wait()
	return errors.Join(errs...)
}
