package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy 有界重试策略：首次执行 + 最多 MaxRetries 次重试，间隔从 BaseDelay 开始逐次翻倍
type Policy struct {
	// Retryable 判定错误是否值得重试，为空时所有错误都重试
	Retryable func(error) bool
	// OnRetry 每次重试前回调，用于日志和指标
	OnRetry    func(attempt int, err error, delay time.Duration)
	MaxRetries int
	BaseDelay  time.Duration
}

// Attempts 最多执行次数
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delays 返回每次重试前的等待时间，长度为 MaxRetries
func (p Policy) Delays() []time.Duration {
	b := p.backOff()
	b.Reset()

	delays := make([]time.Duration, 0, p.Attempts()-1)
	for i := 1; i < p.Attempts(); i++ {
		delays = append(delays, b.NextBackOff())
	}
	return delays
}

// Do 执行 fn，遇到可重试错误按退避间隔重试。
// 重试耗尽后返回最后一次的错误，调用方可以再用 Retryable 判断是否属于耗尽。
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempt := 0

	op := func() (struct{}, error) {
		attempt++
		err := fn(attempt)
		if err == nil {
			return struct{}{}, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.Attempts())),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, delay time.Duration) {
			p.OnRetry(attempt, err, delay)
		}))
	}

	_, err := backoff.Retry(ctx, op, opts...)
	return err
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	maxInterval := backoff.DefaultMaxInterval
	if p.BaseDelay > 0 && p.MaxRetries > 0 {
		if ceiling := p.BaseDelay << uint(p.MaxRetries); ceiling > maxInterval {
			maxInterval = ceiling
		}
	}

	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxInterval,
	}
}
