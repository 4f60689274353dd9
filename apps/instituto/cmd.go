package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/credential"
	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
	logsvc "github.com/AntoVGreco/app-instituto-MCV/services/logger"
	"github.com/AntoVGreco/app-instituto-MCV/storage/snapshot"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp               = errors.New("help provided")
	errForbidden          = errors.New("not allowed for this profile")
	errMustChangePassword = errors.New("the password must be changed first: run `instituto passwd`")
)

type commandLine struct {
	conf  *core.Config
	log   core.Logger
	inst  *institute.Institute
	close snapshot.CloseFunc

	configPath string
	identity   string // --as

	out    io.Writer
	errOut io.Writer
}

// open loads config, logger, store and institute, unless they were injected.
func (cli *commandLine) open(ctx context.Context) error {
	if cli.inst != nil {
		return nil
	}
	conf, err := core.NewConfig(core.WithConfigFile(cli.configPath))
	if err != nil {
		return err
	}
	cli.conf = conf
	if cli.log == nil {
		cli.log = logsvc.NewZeroLogger(cli.errOut, conf)
	}

	hasher, err := credential.New(conf)
	if err != nil {
		return err
	}
	store, closeFn, err := snapshot.Open(ctx, conf)
	if err != nil {
		return err
	}
	cli.close = closeFn
	inst, err := institute.Open(ctx, conf, hasher, store, cli.log)
	if err != nil {
		return err
	}
	cli.inst = inst
	return nil
}

func (cli *commandLine) shutdown() {
	if cli.close != nil {
		if err := cli.close(); err != nil && cli.log != nil {
			cli.log.Error("closing store", err)
		}
	}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "instituto",
		Short:         "Academic institute enrollment manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.open(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.errOut)
	root.PersistentFlags().StringVar(&cli.configPath, "config", "", "config file (yaml, toml, json)")
	root.PersistentFlags().StringVar(&cli.identity, "as", "", "identity to log in with; the password is prompted")

	root.AddCommand(
		cli.loginCmd(),
		cli.passwdCmd(),
		cli.userCmd(),
		cli.courseCmd(),
		cli.enrollCmd(),
		cli.coursesCmd(),
		cli.exportCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:] // program name
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.errOut, prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.errOut)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

// authenticate logs in with --as and a prompted password.
func (cli *commandLine) authenticate() (user.Session, error) {
	sess, _, err := cli.authenticatePassword()
	return sess, err
}

// authenticatePassword is authenticate, also returning the typed password.
func (cli *commandLine) authenticatePassword() (user.Session, string, error) {
	if cli.identity == "" {
		return user.Session{}, "", errors.New("--as IDENTITY is required")
	}
	pwd, err := cli.readPassword("Password: ")
	if err != nil {
		return user.Session{}, "", err
	}
	sess, err := cli.inst.Authenticate(cli.identity, pwd)
	if err != nil {
		cli.log.Warn("authentication failed", map[string]interface{}{"identity": cli.identity}, err)
		return user.Session{}, "", err
	}
	return sess, pwd, nil
}

// login authenticates and refuses accounts that still have to change their password.
func (cli *commandLine) login() (user.Account, error) {
	sess, err := cli.authenticate()
	if err != nil {
		return nil, err
	}
	if sess.MustChangePassword {
		return nil, errMustChangePassword
	}
	return sess.Account, nil
}

func (cli *commandLine) asAdmin() (*user.Administrator, error) {
	acc, err := cli.login()
	if err != nil {
		return nil, err
	}
	adm, ok := acc.(*user.Administrator)
	if !ok {
		return nil, errors.Wrap(errForbidden, "administrators only")
	}
	return adm, nil
}

func (cli *commandLine) asTeacher() (*user.Teacher, error) {
	acc, err := cli.login()
	if err != nil {
		return nil, err
	}
	tchr, ok := acc.(*user.Teacher)
	if !ok {
		return nil, errors.Wrap(errForbidden, "teachers only")
	}
	return tchr, nil
}

func (cli *commandLine) asStudent() (*user.Student, error) {
	acc, err := cli.login()
	if err != nil {
		return nil, err
	}
	std, ok := acc.(*user.Student)
	if !ok {
		return nil, errors.Wrap(errForbidden, "students only")
	}
	return std, nil
}

// commit saves the institute after a mutation.
func (cli *commandLine) commit(ctx context.Context) error {
	return cli.inst.Commit(ctx)
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.out, format, args...)
}
