// Package wire implements the request-line subset of HTTP/1.1 spoken on the
// query port: one request line in, one fixed-shape response out.
package wire

import (
	"errors"
	"strconv"
)

var ErrMalformed = errors.New("empty request")

// ParseRequestLine returns the bytes of buf before the second space, e.g.
// "GET /load" for "GET /load HTTP/1.1\r\n...". Without two spaces the whole
// buffer is returned. Only an empty buffer is malformed.
func ParseRequestLine(buf []byte) (string, error) {
	if len(buf) == 0 {
		return "", ErrMalformed
	}
	spaces := 0
	for i, b := range buf {
		if b == ' ' {
			spaces++
			if spaces == 2 {
				return string(buf[:i]), nil
			}
		}
	}
	return string(buf), nil
}

// Response is a status line plus an optional text/plain body.
type Response struct {
	Status int
	Body   string
}

func OK(body string) Response { return Response{Status: 200, Body: body} }
func NotFound() Response      { return Response{Status: 404} }
func InternalError() Response { return Response{Status: 500} }

var reasons = map[int]string{
	200: "OK",
	404: "Not Found",
	500: "Internal Server Error",
}

// Bytes renders the response. Only 200 carries headers and a body; other
// statuses are a bare status line.
func (r Response) Bytes() []byte {
	reason := reasons[r.Status]
	b := make([]byte, 0, 64+len(r.Body))
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(r.Status), 10)
	b = append(b, ' ')
	b = append(b, reason...)
	b = append(b, "\r\n"...)
	if r.Status != 200 {
		return b
	}
	b = append(b, "Content-Type: text/plain;\r\n\r\n"...)
	b = append(b, r.Body...)
	b = append(b, "\r\n"...)
	return b
}
