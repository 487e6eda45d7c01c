// Package main is opsdemo, a small CLI that exercises the queue, condition,
// group and retry machinery end to end.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vmihailenco/msgpack/v5"

	operations "github.com/joeycumines/go-operations"
	"github.com/joeycumines/go-operations/opslog"
	"github.com/rs/zerolog"
)

func main() {
	app := &cli.App{
		Name:  "opsdemo",
		Usage: "Drive the operations queue through a few scenarios",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Usage: "max concurrent operations", Value: 4},
			&cli.StringFlag{Name: "dump", Usage: "debug dump format: text or msgpack", Value: "text"},
		},
		Commands: []*cli.Command{
			queueScenarioCommand(),
			categoryDemoCommand(),
			retryScenarioCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "opsdemo: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() operations.Logger {
	return opslog.New(zerolog.New(os.Stderr).With().Timestamp().Logger())
}

func dumpOperation(c *cli.Context, op operations.Operation) error {
	rec := op.Debug()
	switch c.String("dump") {
	case "msgpack":
		b, err := msgpack.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(b)
		return err
	default:
		operations.Dump(os.Stdout, rec, 8)
		return nil
	}
}

// queueScenarioCommand builds a small dependency graph, runs it to
// completion, and dumps it.
func queueScenarioCommand() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Run a dependency graph of basic operations",
		Action: func(c *cli.Context) error {
			log := newLogger()
			q := operations.NewQueue()
			q.SetMaxConcurrent(c.Int("workers"))

			fetch := operations.NewBasicOperation("fetch", func(_ *operations.Core, finish func([]error)) {
				log.Info("fetching", map[string]any{})
				finish(nil)
			})
			fetch.AddObserver(opslog.ObserverLogger(log))

			parse := operations.NewBasicOperation("parse", func(_ *operations.Core, finish func([]error)) {
				log.Info("parsing", map[string]any{})
				finish(nil)
			})
			parse.AddDependency(fetch)
			parse.AddObserver(opslog.ObserverLogger(log))

			q.AddAll(fetch, parse)
			q.Wait()

			return dumpOperation(c, parse)
		},
	}
}

// categoryDemoCommand runs two operations that both declare a mutually
// exclusive condition in the same category, demonstrating that only one
// executes at a time.
func categoryDemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "category-demo",
		Usage: "Run two mutually exclusive operations",
		Action: func(c *cli.Context) error {
			log := newLogger()
			q := operations.NewQueue()
			q.SetMaxConcurrent(c.Int("workers"))

			writer := func(name string) *operations.Basic {
				op := operations.NewBasicOperation(name, func(_ *operations.Core, finish func([]error)) {
					log.Info("holding exclusive category", map[string]any{"operation": name})
					time.Sleep(10 * time.Millisecond)
					finish(nil)
				})
				op.AddObserver(opslog.ObserverLogger(log))
				cond := operations.BlockCondition(func(context.Context, operations.Operation) bool { return true })
				op.AddCondition(exclusiveCondition{Condition: cond, category: "writer"})
				return op
			}

			a, b := writer("writer-a"), writer("writer-b")
			q.AddAll(a, b)
			q.Wait()

			return dumpOperation(c, a)
		},
	}
}

// retryScenarioCommand runs an operation that fails twice before succeeding,
// via RetryOperation.
func retryScenarioCommand() *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "Run a flaky operation through RetryOperation",
		Action: func(c *cli.Context) error {
			log := newLogger()
			q := operations.NewQueue()
			q.SetMaxConcurrent(c.Int("workers"))

			flakeErr := errors.New("transient failure")
			attempts := 0

			gen := func(attempt int) (operations.RetryAttempt, bool) {
				n := attempt
				op := operations.NewBasicOperation(fmt.Sprintf("flaky-attempt-%d", n), func(_ *operations.Core, finish func([]error)) {
					attempts++
					if attempts < 3 {
						finish([]error{flakeErr})
						return
					}
					finish(nil)
				})
				op.AddObserver(opslog.ObserverLogger(log))
				return operations.RetryAttempt{Operation: op}, true
			}

			retry := operations.NewRetryOperation(gen, operations.RetryOptions{
				MaxCount: 5,
				Strategy: operations.Fixed(5 * time.Millisecond),
			})
			retry.AddObserver(opslog.ObserverLogger(log))

			q.Add(retry)
			q.Wait()

			log.Info("retry finished", map[string]any{
				"count":     retry.Count(),
				"succeeded": retry.Succeeded(),
			})
			return dumpOperation(c, retry)
		},
	}
}

// exclusiveCondition decorates a Condition as mutually-exclusive within
// category, without needing a bespoke Condition implementation per demo.
type exclusiveCondition struct {
	operations.Condition
	category string
}

func (e exclusiveCondition) MutuallyExclusive() bool { return true }
func (e exclusiveCondition) Category() string        { return e.category }
