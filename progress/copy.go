package progress

import (
	"fmt"
	"io"
)

// CopyBuffer is an implementation of io.CopyBuffer that polls Controller.Check before every chunk and reports every
// chunk written with Controller.Add.
//
// If buf is nil, one of DefaultChunkSize is allocated. Errors from Check are returned as-is; read and write errors are
// returned unclassified for the caller to wrap.
func CopyBuffer(ctl *Controller, dst io.Writer, src io.Reader, buf []byte) (written int64, err error) {
	if buf == nil {
		buf = make([]byte, DefaultChunkSize)
	}

	var nr, nw int
	for {
		if err = ctl.Check(); err != nil {
			return
		}

		nr, err = src.Read(buf)

		if nr > 0 {
			switch nw, err = dst.Write(buf[0:nr]); {
			case err != nil:
				return
			case nw < nr:
				return written, io.ErrShortWrite
			case nw != nr:
				return written, fmt.Errorf("invalid write: expected to write %d bytes, wrote %d bytes instead", nr, nw)
			}

			written += int64(nw)
			ctl.Add(int64(nw))
		}

		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return
		}
	}
}
