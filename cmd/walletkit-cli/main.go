// walletkit-cli manages walletkit keystores and runs one-shot wallet
// operations (sync, send) against a ledger indexer.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Klingon-tech/walletkit/config"
	"github.com/Klingon-tech/walletkit/internal/keystore"
	"github.com/Klingon-tech/walletkit/internal/manager"
	"github.com/Klingon-tech/walletkit/pkg/amount"
	"github.com/Klingon-tech/walletkit/pkg/derive"
	"github.com/Klingon-tech/walletkit/pkg/ledger/all"
	"github.com/Klingon-tech/walletkit/pkg/walletkit"
)

// globals are the flags accepted before the subcommand.
type globals struct {
	dataDir  string
	network  config.NetworkType
	endpoint string
}

// parseGlobals scans --datadir, --network/--testnet and --endpoint ahead of
// the subcommand and returns the remaining arguments.
func parseGlobals(args []string) (globals, []string) {
	g := globals{dataDir: config.DefaultDataDir(), network: config.Mainnet}
	for len(args) > 0 {
		switch {
		case args[0] == "--datadir" && len(args) > 1:
			g.dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			g.dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			g.network = config.NetworkType(strings.ToLower(args[1]))
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			g.network = config.NetworkType(strings.ToLower(args[0][len("--network="):]))
			args = args[1:]
		case args[0] == "--testnet":
			g.network = config.Testnet
			args = args[1:]
		case args[0] == "--endpoint" && len(args) > 1:
			g.endpoint = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--endpoint="):
			g.endpoint = args[0][len("--endpoint="):]
			args = args[1:]
		default:
			return g, args
		}
	}
	return g, args
}

// loadConfig reads the daemon's config for the selected network type.
func (g globals) loadConfig() *config.Config {
	cfg, err := config.LoadFromFile(g.dataDir, g.network)
	if err != nil {
		fatal("%v", err)
	}
	if g.endpoint != "" {
		cfg.Client.Endpoint = g.endpoint
	}
	return cfg
}

func main() {
	g, args := parseGlobals(os.Args[1:])
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if g.network != config.Mainnet && g.network != config.Testnet {
		fatal("--network must be mainnet or testnet")
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "networks":
		cmdNetworks(g, cmdArgs)
	case "init":
		cmdInit(g, cmdArgs)
	case "list":
		cmdList(g)
	case "addresses":
		cmdAddresses(g, cmdArgs)
	case "sync":
		cmdSync(g, cmdArgs)
	case "send":
		cmdSend(g, cmdArgs)
	case "wipe":
		cmdWipe(g, cmdArgs)
	case "version":
		fmt.Printf("walletkit-cli version %s\n", config.Version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: walletkit-cli [global flags] <command> [flags]

Global flags:
  --datadir <path>    Data directory (default: ~/.walletkit)
  --network <net>     mainnet (default) or testnet
  --testnet           Shorthand for --network testnet
  --endpoint <url>    Indexer endpoint (default: from walletkit.conf)

Commands:
  networks                       List catalog networks
  init [--name N] [--import]     Create a keystore from a new or existing mnemonic
  list                           List keystores
  addresses [--name N]           Show receive addresses per network
  sync --net UIDS [--name N]     Sync one network and print balances
  send --net UIDS --to ADDR --amount X [--currency C] [--tier T] [--name N]
                                 Sign and submit a transfer
  wipe --net UIDS                Delete a network's stored transfers
  version                        Show version

The daemon (walletkitd) keeps the store open; stop it before sync, send
or wipe when storage.backend is badger.
`)
}

// ── Catalog ─────────────────────────────────────────────────────────

func cmdNetworks(g globals, args []string) {
	fs := flag.NewFlagSet("networks", flag.ExitOnError)
	allTypes := fs.Bool("all", false, "Include both mainnet and testnet networks")
	fs.Parse(args)

	cfg := g.loadConfig()
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		fatal("%v", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "UIDS\tLEDGER\tTYPE\tCURRENCIES")
	for _, e := range catalog.Networks {
		if !*allTypes && e.Type != g.network {
			continue
		}
		codes := make([]string, 0, len(e.Currencies))
		for _, c := range e.Currencies {
			codes = append(codes, strings.ToUpper(c.Code))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.UIDs, e.Ledger, e.Type, strings.Join(codes, ","))
	}
	tw.Flush()
}

// ── Keystore ────────────────────────────────────────────────────────

func openKeystore(cfg *config.Config) *keystore.Keystore {
	ks, err := keystore.New(cfg.KeystoreDir())
	if err != nil {
		fatal("%v", err)
	}
	return ks
}

func cmdInit(g globals, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	name := fs.String("name", "default", "Keystore name")
	importMnemonic := fs.Bool("import", false, "Read an existing mnemonic instead of generating one")
	fs.Parse(args)

	cfg := g.loadConfig()
	ks := openKeystore(cfg)

	var mnemonic string
	if *importMnemonic {
		b, err := readPassword("Enter mnemonic: ")
		if err != nil {
			fatal("read mnemonic: %v", err)
		}
		mnemonic = strings.Join(strings.Fields(string(b)), " ")
	} else {
		var err error
		mnemonic, err = derive.GenerateMnemonic()
		if err != nil {
			fatal("generate mnemonic: %v", err)
		}
		fmt.Println("Mnemonic (write this down!):")
		fmt.Printf("  %s\n\n", mnemonic)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	accounts, err := ks.Create(all.NewRegistry(), *name, mnemonic, "", password, keystore.DefaultParams())
	if err != nil {
		fatal("create keystore: %v", err)
	}
	tags := make([]string, 0, len(accounts))
	for tag, a := range accounts {
		tags = append(tags, tag.String())
		a.Release()
	}
	sort.Strings(tags)
	fmt.Printf("Keystore %q created with accounts for: %s\n", *name, strings.Join(tags, ", "))
}

func cmdList(g globals) {
	cfg := g.loadConfig()
	names, err := openKeystore(cfg).List()
	if err != nil {
		fatal("%v", err)
	}
	if len(names) == 0 {
		fmt.Println("No keystores. Create one with: walletkit-cli init")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func cmdAddresses(g globals, args []string) {
	fs := flag.NewFlagSet("addresses", flag.ExitOnError)
	name := fs.String("name", "", "Keystore name (default: account from config)")
	fs.Parse(args)

	cfg := g.loadConfig()
	if *name != "" {
		cfg.Account = *name
	}
	reg := all.NewRegistry()
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		fatal("%v", err)
	}
	networks, err := config.BuildNetworks(reg, catalog, cfg.Network, cfg.Networks)
	if err != nil {
		fatal("%v", err)
	}
	defer releaseAll(networks)
	accounts, err := openKeystore(cfg).Accounts(reg, cfg.Account)
	if err != nil {
		fatal("%v", err)
	}
	defer func() {
		for _, a := range accounts {
			a.Release()
		}
	}()

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NETWORK\tADDRESS")
	for _, n := range networks {
		a, ok := accounts[n.Tag()]
		if !ok {
			fmt.Fprintf(tw, "%s\t(no account)\n", n.UIDs())
			continue
		}
		w, err := walletkit.NewWallet(n, a, n.Currency())
		if err != nil {
			fmt.Fprintf(tw, "%s\t(%v)\n", n.UIDs(), err)
			continue
		}
		addr, err := w.DefaultAddress()
		if err != nil {
			fmt.Fprintf(tw, "%s\t(%v)\n", n.UIDs(), err)
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", n.UIDs(), addr)
			addr.Release()
		}
		w.Release()
	}
	tw.Flush()
}

func releaseAll(networks []*walletkit.Network) {
	for _, n := range networks {
		n.Release()
	}
}

// ── Sync / send ─────────────────────────────────────────────────────

func cmdSync(g globals, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	uids := fs.String("net", "", "Network uids")
	name := fs.String("name", "", "Keystore name (default: account from config)")
	timeout := fs.Duration("wait", 2*time.Minute, "How long to wait for the sync")
	fs.Parse(args)
	if *uids == "" {
		fatal("Usage: walletkit-cli sync --net <uids> [--name <keystore>]")
	}

	cfg := g.loadConfig()
	if *name != "" {
		cfg.Account = *name
	}
	s, err := openSession(cfg, *uids)
	if err != nil {
		fatal("%v", err)
	}
	defer s.close()

	if err := s.sync(*timeout); err != nil {
		fatal("sync: %v", err)
	}
	s.printBalances(os.Stdout)
}

func cmdSend(g globals, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	uids := fs.String("net", "", "Network uids")
	name := fs.String("name", "", "Keystore name (default: account from config)")
	to := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount in the currency's default unit")
	code := fs.String("currency", "", "Currency code (default: native)")
	tier := fs.String("tier", "", "Fee tier (default: cheapest)")
	timeout := fs.Duration("wait", 2*time.Minute, "How long to wait for sync and submission")
	fs.Parse(args)
	if *uids == "" || *to == "" || *amountStr == "" {
		fatal("Usage: walletkit-cli send --net <uids> --to <address> --amount <amount> [--currency <code>] [--tier <tier>]")
	}

	cfg := g.loadConfig()
	if *name != "" {
		cfg.Account = *name
	}
	s, err := openSession(cfg, *uids)
	if err != nil {
		fatal("%v", err)
	}
	defer s.close()

	if err := s.sync(*timeout); err != nil {
		fatal("sync: %v", err)
	}
	t, w, err := s.createTransfer(*code, *to, *amountStr, *tier)
	if err != nil {
		fatal("%v", err)
	}
	defer t.Release()

	if fee, ok := t.Fee(); ok {
		fmt.Printf("Fee: %s\n", formatAmount(s.network(), fee))
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := s.ks.Seed(cfg.Account, password)
	if err != nil {
		fatal("unlock keystore: %v", err)
	}
	defer clear(seed)

	hash, err := s.submit(w, t, seed, *timeout)
	if err != nil {
		fatal("submit: %v", err)
	}
	fmt.Printf("Submitted: %s\n", hash)
}

func cmdWipe(g globals, args []string) {
	fs := flag.NewFlagSet("wipe", flag.ExitOnError)
	uids := fs.String("net", "", "Network uids")
	fs.Parse(args)
	if *uids == "" {
		fatal("Usage: walletkit-cli wipe --net <uids>")
	}

	cfg := g.loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		fatal("%v", err)
	}
	defer db.Close()
	path := manager.StorePath(cfg.NetworkDataDir(), *uids)
	if err := manager.WipeStore(db, path, *uids); err != nil {
		if errors.Is(err, manager.ErrActive) {
			fatal("%s is in use", *uids)
		}
		fatal("%v", err)
	}
	fmt.Printf("Wiped stored transfers for %s\n", *uids)
}

func formatAmount(n *walletkit.Network, a amount.Amount) string {
	u, err := n.DefaultUnit(a.Currency())
	if err != nil {
		return a.String()
	}
	d, err := a.In(u)
	if err != nil {
		return a.String()
	}
	return d.String() + " " + u.Symbol()
}

// ── Helpers ─────────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
