// Ad-hoc diagnostic: prints, per file in the worlds directory, the stat
// triple next to what the sidecar cache remembers, to figure out why a file
// keeps re-hashing or shows up as unknown version.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"ap-tools/core/config"
	"ap-tools/feature/worlds"

	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	dir := cfg.Archipelago.CustomWorldsDir()
	fmt.Printf("worlds dir: %s\n", dir)

	cache, err := worlds.OpenCache(dir, clockwork.NewRealClock())
	if err != nil {
		log.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal(err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		var inode uint64
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			inode = st.Ino
		}
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		fmt.Printf("\n=== %s ===\n", name)
		fmt.Printf("disk:   mtime=%.7f size=%d inode=%d\n", mtime, info.Size(), inode)

		cached, ok := cache.File(name)
		if !ok {
			fmt.Println("cache:  no entry (will be hashed on the next run)")
			continue
		}
		fmt.Printf("cache:  mtime=%.7f size=%d inode=%d\n", cached.Mtime, cached.Size, cached.Inode)
		fmt.Printf("sha256: %s\n", cached.SHA256Hex)

		if cached.Mtime == mtime && cached.Size == info.Size() && cached.Inode == inode {
			fmt.Println("status: stat triple matches, hash will be reused")
		} else {
			fmt.Println("status: stat triple CHANGED, file will be re-hashed")
		}
	}
}
