// Package notifier implements an asynchronous dispatcher draining the
// notification queue into the relay service.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	restClient "github.com/VSFLima/Byte-Capital/internal/api/rest/client"
	"github.com/VSFLima/Byte-Capital/internal/models/modelqueue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const queueCapacity = 100

// Broker defines attributes of a struct available to its methods.
type Broker struct {
	ctx          context.Context
	log          *zerolog.Logger
	client       *restClient.Client
	wg           *sync.WaitGroup
	workerNumber int
	retryNumber  int
	Queue        chan modelqueue.NotificationQueueEntry
}

// SendNotificationWorker drains the queue and posts entries to the relay.
type SendNotificationWorker struct {
	ID          int
	ctx         context.Context
	log         *zerolog.Logger
	client      *restClient.Client
	queue       chan modelqueue.NotificationQueueEntry
	retryNumber int
}

// InitBroker initializes a notification broker owning the queue channel.
func InitBroker(ctx context.Context, client *restClient.Client, log *zerolog.Logger, wg *sync.WaitGroup, workerNumber, retryNumber int) *Broker {
	broker := Broker{
		ctx:          ctx,
		log:          log,
		client:       client,
		wg:           wg,
		workerNumber: workerNumber,
		retryNumber:  retryNumber,
		Queue:        make(chan modelqueue.NotificationQueueEntry, queueCapacity),
	}
	return &broker
}

// ListenAndProcess starts the worker pool and closes the queue on context cancellation.
func (b *Broker) ListenAndProcess() {
	b.wg.Add(1)
	go func() {
		log.Info().Msg("started listening to notification queue")
		defer b.wg.Done()
		g, _ := errgroup.WithContext(b.ctx)
		for i := 0; i < b.workerNumber; i++ {
			w := &SendNotificationWorker{ID: i, ctx: b.ctx, log: b.log, client: b.client, queue: b.Queue, retryNumber: b.retryNumber}
			g.Go(w.processAsync)
		}
		<-b.ctx.Done()
		close(b.Queue)
		log.Info().Msg("closed notification queue")
		err := g.Wait()
		if err != nil {
			b.log.Fatal().Err(err).Msg("closing errgroup failed")
		}
		log.Info().Msg("stopped listening to notification queue")
	}()
}

func (w *SendNotificationWorker) processAsync() error {
	for record := range w.queue {
		for {
			sendCtx, cancel := context.WithTimeout(w.ctx, 5*time.Second)
			err := w.client.SendNotification(sendCtx, record)
			cancel()
			if err == nil {
				w.log.Info().Msg(fmt.Sprintf("WID %v, action %v — notification relayed", w.ID, record.Action))
				break
			}
			if record.RetryCount >= w.retryNumber {
				// abandon processing if the retry limit was exhausted
				w.log.Warn().Msg(fmt.Sprintf("WID %v, action %v — abandonment due to retry limit exceeding", w.ID, record.Action))
				break
			}
			record.RetryCount += 1
			record.LastAttempt = time.Now()
			w.log.Warn().Msg(fmt.Sprintf("WID %v, action %v — could not relay, retrying (%v)", w.ID, record.Action, record.RetryCount))
			select {
			case <-w.ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
	return nil
}
