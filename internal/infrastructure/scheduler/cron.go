package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRON EXPRESSIONS
// Пятипольный cron (минута час день месяц день-недели) для задач, которым
// интервального расписания недостаточно: ночные бэкапы, прогрев лидерборда
// перед вечерним сеансом.
// ══════════════════════════════════════════════════════════════════════════════

// Готовые выражения для штатных задач хаба.
const (
	EveryMinute      = "* * * * *"
	Every5Minutes    = "*/5 * * * *"
	Every10Minutes   = "*/10 * * * *"
	Every15Minutes   = "*/15 * * * *"
	Every30Minutes   = "*/30 * * * *"
	EveryHour        = "0 * * * *"
	EveryDay21PM     = "0 21 * * *"
	EveryDayMidnight = "0 0 * * *"
	EverySunday      = "0 0 * * 0"
	FirstOfMonth     = "0 0 1 * *"

	// FridayPrime - за час до стандартного пятничного сеанса.
	FridayPrime = "0 19 * * 5"
)

// CronExpression - разобранное cron-выражение. Каждое поле хранится как
// отсортированный список допустимых значений.
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int
}

// cronField описывает границы одного поля выражения.
type cronField struct {
	name string
	min  int
	max  int
}

var cronFields = [5]cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// ParseCronExpression разбирает строку из пяти полей.
// Поддерживаются формы: *, */n, n, n-m, n-m/s, n,m,o.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression: expected %d fields, got %d", len(cronFields), len(fields))
	}

	parsed := make([][]int, len(cronFields))
	for i, spec := range cronFields {
		values, err := parseCronField(fields[i], spec)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		parsed[i] = values
	}

	return &CronExpression{
		raw:      expr,
		minutes:  parsed[0],
		hours:    parsed[1],
		days:     parsed[2],
		months:   parsed[3],
		weekdays: parsed[4],
	}, nil
}

// MustParseCronExpression разбирает выражение или паникует.
// Только для констант, известных на этапе компиляции.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseCronField разбирает одно поле, делегируя по синтаксической форме.
func parseCronField(field string, spec cronField) ([]int, error) {
	switch {
	case field == "*":
		return enumerate(spec.min, spec.max, 1), nil
	case strings.Contains(field, "/"):
		return parseStepField(field, spec)
	case strings.Contains(field, "-"):
		return parseRangeField(field, spec)
	case strings.Contains(field, ","):
		return parseListField(field, spec)
	default:
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %s", field)
		}
		if v < spec.min || v > spec.max {
			return nil, fmt.Errorf("value out of range [%d-%d]: %d", spec.min, spec.max, v)
		}
		return []int{v}, nil
	}
}

// parseStepField разбирает */n и n-m/s.
func parseStepField(field string, spec cronField) ([]int, error) {
	base, stepStr, ok := strings.Cut(field, "/")
	if !ok || strings.Contains(stepStr, "/") {
		return nil, fmt.Errorf("invalid step format: %s", field)
	}

	step, err := strconv.Atoi(stepStr)
	if err != nil || step <= 0 {
		return nil, fmt.Errorf("invalid step value: %s", stepStr)
	}

	start, end := spec.min, spec.max
	switch {
	case base == "*":
	case strings.Contains(base, "-"):
		lo, hi, _ := strings.Cut(base, "-")
		start, _ = strconv.Atoi(lo)
		end, _ = strconv.Atoi(hi)
	default:
		start, _ = strconv.Atoi(base)
	}

	var values []int
	for v := start; v <= end; v += step {
		if v >= spec.min && v <= spec.max {
			values = append(values, v)
		}
	}
	return values, nil
}

// parseRangeField разбирает n-m.
func parseRangeField(field string, spec cronField) ([]int, error) {
	lo, hi, ok := strings.Cut(field, "-")
	if !ok || strings.Contains(hi, "-") {
		return nil, fmt.Errorf("invalid range format: %s", field)
	}

	start, err := strconv.Atoi(lo)
	if err != nil {
		return nil, fmt.Errorf("invalid range start: %s", lo)
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return nil, fmt.Errorf("invalid range end: %s", hi)
	}

	var values []int
	for v := start; v <= end; v++ {
		if v >= spec.min && v <= spec.max {
			values = append(values, v)
		}
	}
	return values, nil
}

// parseListField разбирает n,m,o.
func parseListField(field string, spec cronField) ([]int, error) {
	var values []int
	for _, part := range strings.Split(field, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid list value: %s", part)
		}
		if v >= spec.min && v <= spec.max {
			values = append(values, v)
		}
	}
	sort.Ints(values)
	return values, nil
}

// enumerate возвращает все значения [min, max] с шагом step.
func enumerate(min, max, step int) []int {
	values := make([]int, 0, (max-min)/step+1)
	for v := min; v <= max; v += step {
		values = append(values, v)
	}
	return values
}

// String возвращает исходное выражение.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next возвращает ближайшее совпадение строго после t.
// Текущая минута никогда не возвращается, даже если подходит.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	// Год в минутах. У валидного выражения совпадение найдётся раньше.
	limit := t.AddDate(1, 0, 1)
	for ; t.Before(limit); t = t.Add(time.Minute) {
		if ce.matches(t) {
			return t
		}
	}
	return time.Time{}
}

// matches проверяет совпадение всех пяти полей.
func (ce *CronExpression) matches(t time.Time) bool {
	return hasValue(ce.minutes, t.Minute()) &&
		hasValue(ce.hours, t.Hour()) &&
		hasValue(ce.days, t.Day()) &&
		hasValue(ce.months, int(t.Month())) &&
		hasValue(ce.weekdays, int(t.Weekday()))
}

// hasValue ищет v в отсортированном списке значений поля.
func hasValue(sorted []int, v int) bool {
	i := sort.SearchInts(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// CronJob - зарегистрированная задача с её расписанием и счётчиками.
type CronJob struct {
	Name       string
	Expression *CronExpression
	Job        Job
	LastRun    time.Time
	NextRun    time.Time
	RunCount   int64
	Enabled    bool
}

// CronScheduler запускает задачи по cron-выражениям. Тикает раз в минуту,
// выравниваясь по началу минуты.
type CronScheduler struct {
	mu       sync.RWMutex
	jobs     map[string]*CronJob
	logger   *slog.Logger
	location *time.Location
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// CronOption настраивает CronScheduler.
type CronOption func(*CronScheduler)

// WithLocation задаёт часовой пояс для вычисления расписаний.
func WithLocation(loc *time.Location) CronOption {
	return func(cs *CronScheduler) { cs.location = loc }
}

// WithCronLogger задаёт логгер планировщика.
func WithCronLogger(logger *slog.Logger) CronOption {
	return func(cs *CronScheduler) { cs.logger = logger }
}

// NewCronScheduler создаёт планировщик без задач.
func NewCronScheduler(opts ...CronOption) *CronScheduler {
	cs := &CronScheduler{
		jobs:     make(map[string]*CronJob),
		logger:   slog.Default(),
		location: time.Local,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// AddJob регистрирует задачу. Повторное имя заменяет прежнюю регистрацию.
func (cs *CronScheduler) AddJob(name string, cronExpr string, job Job) error {
	expr, err := ParseCronExpression(cronExpr)
	if err != nil {
		return fmt.Errorf("failed to parse cron expression: %w", err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry := &CronJob{
		Name:       name,
		Expression: expr,
		Job:        job,
		NextRun:    expr.Next(cs.now()),
		Enabled:    true,
	}
	cs.jobs[name] = entry

	cs.logger.Info("cron job added",
		"job", name,
		"expression", cronExpr,
		"next_run", entry.NextRun.Format(time.RFC3339),
	)
	return nil
}

// RemoveJob снимает задачу с расписания.
func (cs *CronScheduler) RemoveJob(name string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.jobs, name)
	cs.logger.Info("cron job removed", "job", name)
}

// EnableJob включает задачу и пересчитывает её следующий запуск.
func (cs *CronScheduler) EnableJob(name string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.jobs[name]
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	entry.Enabled = true
	entry.NextRun = entry.Expression.Next(cs.now())
	return nil
}

// DisableJob выключает задачу, не удаляя её.
func (cs *CronScheduler) DisableJob(name string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry, ok := cs.jobs[name]
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	entry.Enabled = false
	return nil
}

// GetJobStatus возвращает копию состояния задачи.
func (cs *CronScheduler) GetJobStatus(name string) (*CronJob, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, ok := cs.jobs[name]
	if !ok {
		return nil, false
	}
	snapshot := *entry
	return &snapshot, true
}

// ListJobs возвращает копии всех задач, отсортированные по ближайшему запуску.
func (cs *CronScheduler) ListJobs() []*CronJob {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	list := make([]*CronJob, 0, len(cs.jobs))
	for _, entry := range cs.jobs {
		snapshot := *entry
		list = append(list, &snapshot)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].NextRun.Before(list[j].NextRun)
	})
	return list
}

// Start запускает цикл планировщика.
func (cs *CronScheduler) Start(ctx context.Context) error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return fmt.Errorf("cron scheduler already running")
	}
	cs.running = true
	cs.stopCh = make(chan struct{})
	cs.mu.Unlock()

	cs.logger.Info("cron scheduler started", "timezone", cs.location.String())

	cs.wg.Add(1)
	go cs.loop(ctx)
	return nil
}

// Stop останавливает цикл и дожидается запущенных задач.
func (cs *CronScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	close(cs.stopCh)
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.logger.Info("cron scheduler stopped")
}

func (cs *CronScheduler) now() time.Time {
	return time.Now().In(cs.location)
}

// loop тикает в начале каждой минуты и запускает созревшие задачи.
func (cs *CronScheduler) loop(ctx context.Context) {
	defer cs.wg.Done()

	timer := time.NewTimer(cs.untilNextMinute())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.logger.Info("cron scheduler context cancelled")
			return
		case <-cs.stopCh:
			return
		case <-timer.C:
			cs.runDueJobs(ctx)
			timer.Reset(cs.untilNextMinute())
		}
	}
}

// untilNextMinute возвращает время до начала следующей минуты.
func (cs *CronScheduler) untilNextMinute() time.Duration {
	return time.Until(cs.now().Truncate(time.Minute).Add(time.Minute))
}

// runDueJobs собирает созревшие задачи под RLock и запускает их вне его.
func (cs *CronScheduler) runDueJobs(ctx context.Context) {
	now := cs.now()

	cs.mu.RLock()
	var due []*CronJob
	for _, entry := range cs.jobs {
		if entry.Enabled && !entry.NextRun.After(now) {
			due = append(due, entry)
		}
	}
	cs.mu.RUnlock()

	for _, entry := range due {
		cs.launch(ctx, entry, now)
	}
}

// launch обновляет метаданные задачи и выполняет её в отдельной горутине,
// чтобы долгая задача не задерживала остальные.
func (cs *CronScheduler) launch(ctx context.Context, entry *CronJob, now time.Time) {
	cs.mu.Lock()
	entry.LastRun = now
	entry.NextRun = entry.Expression.Next(now)
	entry.RunCount++
	runCount := entry.RunCount
	cs.mu.Unlock()

	cs.logger.Info("running cron job", "job", entry.Name, "run_count", runCount)

	cs.wg.Add(1)
	go func(j *CronJob) {
		defer cs.wg.Done()

		started := time.Now()
		err := j.Job.Run(ctx)
		elapsed := time.Since(started)

		if err != nil {
			cs.logger.Error("cron job failed", "job", j.Name, "duration", elapsed, "error", err)
			return
		}
		cs.logger.Info("cron job completed", "job", j.Name, "duration", elapsed)
	}(entry)
}
