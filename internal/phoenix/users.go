package phoenix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/brucki/mg-test/internal/domain/user"
)

const (
	OpListUsers  = "list_users"
	OpGetUser    = "get_user"
	OpCreateUser = "create_user"
	OpUpdateUser = "update_user"
	OpDeleteUser = "delete_user"
)

// ListUsers returns every user in server order.
func (c *Client) ListUsers(ctx context.Context) ([]user.Record, error) {
	var out []user.Record
	err := c.do(ctx, call{op: OpListUsers, method: http.MethodGet, path: "/users"}, func(env envelope) (err error) {
		out, err = decodeList(OpListUsers, env)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (user.Record, error) {
	return c.doOne(ctx, call{op: OpGetUser, method: http.MethodGet, path: userPath(id)})
}

// CreateUser sends rec.ToWire() and returns the record the server stored.
func (c *Client) CreateUser(ctx context.Context, rec user.Record) (user.Record, error) {
	body, err := json.Marshal(rec.ToWire())
	if err != nil {
		return user.Record{}, fmt.Errorf("phoenix: encode user: %w", err)
	}

	return c.doOne(ctx, call{op: OpCreateUser, method: http.MethodPost, path: "/users", body: body})
}

// UpdateUser replaces the user identified by rec's id. It returns
// ErrMissingID without any I/O when rec has no id.
func (c *Client) UpdateUser(ctx context.Context, rec user.Record) (user.Record, error) {
	id, ok := rec.ID()
	if !ok {
		return user.Record{}, ErrMissingID
	}

	body, err := json.Marshal(rec.ToWire())
	if err != nil {
		return user.Record{}, fmt.Errorf("phoenix: encode user: %w", err)
	}

	return c.doOne(ctx, call{op: OpUpdateUser, method: http.MethodPut, path: userPath(id), body: body})
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, call{op: OpDeleteUser, method: http.MethodDelete, path: userPath(id)}, nil)
}

// doOne runs cl and decodes a single user from the response data.
func (c *Client) doOne(ctx context.Context, cl call) (user.Record, error) {
	var rec user.Record
	err := c.do(ctx, cl, func(env envelope) (err error) {
		rec, err = decodeOne(cl.op, env)
		return err
	})
	if err != nil {
		return user.Record{}, err
	}
	return rec, nil
}

func userPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10)
}

func decodeOne(op string, env envelope) (user.Record, error) {
	if !env.hasData() {
		return user.Record{}, withOp(protocolError("response is missing data", nil), op)
	}
	if firstByte(env.data) != '{' {
		return user.Record{}, withOp(protocolError("expected a user object in data", nil), op)
	}
	return decodeRecord(op, env.data)
}

func decodeList(op string, env envelope) ([]user.Record, error) {
	if !env.hasData() {
		return nil, withOp(protocolError("response is missing data", nil), op)
	}
	if firstByte(env.data) != '[' {
		return nil, withOp(protocolError("expected a list of users in data", nil), op)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(env.data, &items); err != nil {
		return nil, withOp(protocolError("expected a list of users in data", err), op)
	}

	out := make([]user.Record, 0, len(items))
	for i, raw := range items {
		rec, err := decodeRecord(op, raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeRecord passes *user.MalformedDateError through untouched; any other
// shape problem is a protocol error.
func decodeRecord(op string, raw json.RawMessage) (user.Record, error) {
	rec, err := user.DecodeWire(raw)
	if err == nil {
		return rec, nil
	}

	var dateErr *user.MalformedDateError
	if errors.As(err, &dateErr) {
		return user.Record{}, err
	}
	return user.Record{}, withOp(protocolError("malformed user object", err), op)
}
