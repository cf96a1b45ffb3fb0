package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output управляет форматированием вывода CLI. Данные идут в stdout
// (таблица или JSON при --json), сообщения о ходе — в stderr, чтобы
// табличный вывод оставался пригодным для пайпов.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	fmt.Fprintln(tw, underline(headers))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

func underline(headers []string) string {
	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = strings.Repeat("-", len(h))
	}
	return strings.Join(cols, "\t")
}

// StepRow — строка таблицы результатов шагов. Локальный exec и
// серверные команды заполняют её из своих типов результата.
type StepRow struct {
	StepID   string
	Status   string
	ExitCode int
	Attempts int
	Duration string
	Message  string
}

// StepTable выводит результаты шагов, отсортированные по ID шага.
// Колонка DURATION появляется, только если хотя бы одна строка её
// несёт: серверные результаты длительность не отдают.
func (o *Output) StepTable(rows []StepRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].StepID < rows[j].StepID })

	withDuration := false
	for _, r := range rows {
		if r.Duration != "" {
			withDuration = true
			break
		}
	}

	headers := []string{"STEP", "STATUS", "EXIT", "ATTEMPTS"}
	if withDuration {
		headers = append(headers, "DURATION")
	}
	headers = append(headers, "MESSAGE")

	table := make([][]string, len(rows))
	for i, r := range rows {
		cols := []string{r.StepID, r.Status, strconv.Itoa(r.ExitCode), strconv.Itoa(r.Attempts)}
		if withDuration {
			cols = append(cols, r.Duration)
		}
		table[i] = append(cols, r.Message)
	}

	o.Table(headers, table)
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
