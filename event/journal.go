package event

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	inLogFile  = "in.log"
	outLogFile = "out.log"
)

type LogData struct {
	Time    int64  `json:"time"`
	Service string `json:"service"`
	Action  string `json:"action"`
	Data    string `json:"data"`
}

// Journal appends consumed and published events as JSON lines. A nil
// *Journal is valid and records nothing.
type Journal struct {
	mu  sync.Mutex
	in  *os.File
	out *os.File
}

func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	in, err := os.OpenFile(filepath.Join(dir, inLogFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	out, err := os.OpenFile(filepath.Join(dir, outLogFile), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		in.Close()
		return nil, err
	}
	return &Journal{in: in, out: out}, nil
}

func (j *Journal) In(service, action string, data []byte) {
	if j == nil {
		return
	}
	j.write(j.in, service, action, data)
}

func (j *Journal) Out(service, action string, data []byte) {
	if j == nil {
		return
	}
	j.write(j.out, service, action, data)
}

func (j *Journal) write(f *os.File, service, action string, data []byte) {
	line, _ := json.Marshal(LogData{
		Time:    time.Now().UnixMicro(),
		Service: service,
		Action:  action,
		Data:    string(data),
	})

	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = f.Write(append(line, '\n'))
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.in.Close(); err != nil {
		j.out.Close()
		return err
	}
	return j.out.Close()
}
