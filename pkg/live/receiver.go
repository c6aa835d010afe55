package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"userconsole/pkg/users"
)

// hubReceiver holds the client methods the hub invokes. Arguments stay
// raw so a bad payload is logged here instead of inside the client.
type hubReceiver struct {
	ctx    context.Context
	sink   EventSink
	logger interface {
		Printf(string, ...interface{})
	}
}

func (r *hubReceiver) UserCreated(raw json.RawMessage) {
	var u users.User
	if err := json.Unmarshal(raw, &u); err != nil {
		r.logger.Printf("bad UserCreated payload: %v", err)
		return
	}
	r.sink.RecordCreated(r.ctx, u)
}

func (r *hubReceiver) UserUpdated(raw json.RawMessage) {
	var u users.User
	if err := json.Unmarshal(raw, &u); err != nil {
		r.logger.Printf("bad UserUpdated payload: %v", err)
		return
	}
	r.sink.RecordUpdated(r.ctx, u)
}

func (r *hubReceiver) UserDeleted(raw json.RawMessage) {
	id, err := decodeID(raw)
	if err != nil {
		r.logger.Printf("bad UserDeleted payload: %v", err)
		return
	}
	r.sink.RecordDeleted(r.ctx, id)
}

// decodeID accepts an id sent either as a JSON number or a numeric string.
func decodeID(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("id %s is neither a number nor a string", raw)
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// kitLogger feeds the client's key/value log lines into a Printf logger.
type kitLogger struct {
	logger interface {
		Printf(string, ...interface{})
	}
}

func (k kitLogger) Log(keyVals ...interface{}) error {
	var b strings.Builder
	for i := 0; i < len(keyVals); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i+1 < len(keyVals) {
			fmt.Fprintf(&b, "%v=%v", keyVals[i], keyVals[i+1])
		} else {
			fmt.Fprintf(&b, "%v", keyVals[i])
		}
	}
	k.logger.Printf("%s", b.String())
	return nil
}
