package main

// Compiled-in modules. Each registers itself with the core registry.
import (
	_ "github.com/flemzord/chatmem/internal/gateway"
	_ "github.com/flemzord/chatmem/modules/memory/bolt"
	_ "github.com/flemzord/chatmem/modules/memory/mysql"
	_ "github.com/flemzord/chatmem/modules/memory/postgres"
	_ "github.com/flemzord/chatmem/modules/memory/sqlite"
)
