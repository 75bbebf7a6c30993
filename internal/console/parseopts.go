package console

import "fmt"

// parseShortOpts gives the option letters in a bundle such as "-cm". It gives
// nil for anything that is not a bundle, including "-" and "--x".
func parseShortOpts(s string) []rune {
	if len(s) < 2 || s[0] != '-' {
		return nil
	}

	seen := map[rune]bool{}
	var opts []rune
	for _, ch := range s[1:] {
		if ch == '-' {
			return nil
		}
		if !seen[ch] {
			seen[ch] = true
			opts = append(opts, ch)
		}
	}
	return opts
}

// argParseHandler consumes argv[*i]. A handler that takes a value advances
// *i past it.
type argParseHandler func(i *int, argv []string) error

type argParsePosAction struct {
	parse    argParseHandler
	optional bool
}

type flagActions map[rune]argParseHandler
type posArgActions []argParsePosAction

func validatePosArgList(posActs posArgActions) (numRequired int, validationErr error) {
	hitOptional := false
	for _, posAction := range posActs {
		if posAction.optional {
			hitOptional = true
		} else if hitOptional {
			return 0, fmt.Errorf("can't have required positional argument after optional one")
		} else {
			numRequired++
		}
	}
	return numRequired, nil
}

// parseCommandFlags runs the matching action for every option and positional
// argument in argv, skipping argv[0]. Options are only recognized before
// the first "--".
func parseCommandFlags(argv []string, flags flagActions, args posArgActions) ([]string, error) {
	numRequired, err := validatePosArgList(args)
	if err != nil {
		return nil, fmt.Errorf("bad positional arg actions: %v", err)
	}

	var parsedArgs []string
	parsingOpts := true
	curPosItem := 0
	for i := 1; i < len(argv); i++ {
		arg := argv[i]
		if parsingOpts {
			if arg == "--" {
				parsingOpts = false
				continue
			}
			if sargs := parseShortOpts(arg); len(sargs) > 0 {
				for _, ch := range sargs {
					flagHandler, ok := flags[ch]
					if !ok {
						return parsedArgs, fmt.Errorf("unknown option -%c", ch)
					}
					if err := flagHandler(&i, argv); err != nil {
						return parsedArgs, err
					}
				}
				continue
			}
		}

		if curPosItem >= len(args) {
			switch len(args) {
			case 0:
				return parsedArgs, fmt.Errorf("unknown argument %q; command doesn't take any arguments", arg)
			case 1:
				return parsedArgs, fmt.Errorf("unknown argument %q; command only takes 1 argument", arg)
			default:
				return parsedArgs, fmt.Errorf("unknown argument %q; command only takes %d arguments", arg, len(args))
			}
		}
		if err := args[curPosItem].parse(&i, argv); err != nil {
			return parsedArgs, err
		}
		parsedArgs = append(parsedArgs, arg)
		curPosItem++
	}

	if curPosItem < numRequired {
		if numRequired == 1 {
			return parsedArgs, fmt.Errorf("expected at least 1 argument")
		}
		return parsedArgs, fmt.Errorf("expected at least %d arguments", numRequired)
	}
	return parsedArgs, nil
}
