package builtin

import (
	"time"

	"github.com/andrewfreeman/spectator/internal/httpcache"
	"github.com/andrewfreeman/spectator/internal/tools"
)

// Register wires all six required tools into reg. cache may be nil, in
// which case http.get always misses and never writes back.
func Register(reg *tools.Registry, cache *httpcache.Store) {
	reg.Register("fs.read_text", ReadText)
	reg.Register("fs.list_dir", ListDir)
	reg.Register("fs.write_text", WriteText)
	reg.Register("shell.exec", Exec)
	reg.Register("http.get", NewHTTPGet(cache, DefaultFetcher))
	reg.Register("system.time", SystemTime(time.Now))
}
