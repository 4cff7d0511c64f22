// Package wire implements the minimal text framing the protocol rides on:
// a request line, a header block, a blank line, and a JSON body. It exists
// so the server, proxy, and client all speak the exact same bytes; the
// interesting contract lives in the payloads, not here.
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const serverName = "ticarena/1.0"

// maxBodyBytes bounds a request body so a hostile client cannot make a
// worker allocate without limit.
const maxBodyBytes = 64 * 1024

var ErrMalformedRequest = errors.New("malformed request line")

// Request is one parsed inbound request. Raw holds the exact bytes read, so
// a proxy can forward the request verbatim.
type Request struct {
	Method string
	Path   string
	Header map[string]string
	Body   []byte
	Raw    []byte
}

// ReadRequest parses one request from r.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	var raw bytes.Buffer

	line, err := readLine(r, &raw)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, ErrMalformedRequest
	}

	req := &Request{
		Method: parts[0],
		Path:   parts[1],
		Header: make(map[string]string),
	}

	for {
		line, err := readLine(r, &raw)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		if key, value, found := strings.Cut(line, ":"); found {
			req.Header[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}

	if lengthStr, ok := req.Header["content-length"]; ok {
		length, err := strconv.Atoi(lengthStr)
		if err != nil || length < 0 || length > maxBodyBytes {
			return nil, fmt.Errorf("bad content length %q", lengthStr)
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		raw.Write(body)
		req.Body = body
	}

	req.Raw = raw.Bytes()
	return req, nil
}

// PlayerID returns the trailing path segment when the path has more than
// one, which is where every authenticated operation carries the caller's id.
func (req *Request) PlayerID() string {
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// readLine reads one CRLF- (or LF-) terminated line, echoing the raw bytes
// into raw.
func readLine(r *bufio.Reader, raw *bytes.Buffer) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	raw.WriteString(line)
	return strings.TrimRight(line, "\r\n"), nil
}

// Response is one outbound reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewJSONResponse builds a response with body marshaled as JSON.
func NewJSONResponse(statusCode int, body interface{}) *Response {
	data, err := json.Marshal(body)
	if err != nil {
		// Reply bodies are plain structs and maps; a marshal failure is a
		// programming error.
		panic(fmt.Sprintf("wire: marshal response body: %v", err))
	}
	return &Response{StatusCode: statusCode, Body: data}
}

// Bytes serializes the full reply: status line, header block, blank line,
// body. Connections are never reused, so Connection: close is always set.
func (res *Response) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", res.StatusCode, StatusText(res.StatusCode))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	fmt.Fprintf(&buf, "Server: %s\r\n", serverName)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(res.Body))
	buf.WriteString("Content-Type: application/json\r\n")
	buf.WriteString("Connection: close\r\n")
	buf.WriteString("\r\n")
	buf.Write(res.Body)
	return buf.Bytes()
}

// ReadResponse parses one reply from r. Used by the client package and by
// proxy tests.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	var raw bytes.Buffer

	line, err := readLine(r, &raw)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed status line %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed status code %q", parts[1])
	}

	length := -1
	for {
		line, err := readLine(r, &raw)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		if key, value, found := strings.Cut(line, ":"); found {
			if strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
				length, err = strconv.Atoi(strings.TrimSpace(value))
				if err != nil {
					return nil, fmt.Errorf("bad content length %q", value)
				}
			}
		}
	}

	var body []byte
	if length >= 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	} else {
		// No length declared: read to EOF, the peer closes after one reply.
		body, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	return &Response{StatusCode: code, Body: body}, nil
}

// StatusText returns the reason phrase for the handful of codes the
// protocol uses.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 408:
		return "Request Timeout"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
